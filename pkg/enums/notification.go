package enums

import "fmt"

// NotificationType categorizes user-facing notification rows.
type NotificationType string

const (
	NotificationTypePaymentSucceeded     NotificationType = "payment_succeeded"
	NotificationTypePaymentFailed        NotificationType = "payment_failed"
	NotificationTypeTrialEnding          NotificationType = "trial_ending"
	NotificationTypeSubscriptionCanceled NotificationType = "subscription_canceled"
	NotificationTypeSubscriptionRenewed  NotificationType = "subscription_renewed"
	NotificationTypeSubscriptionExpired  NotificationType = "subscription_expired"
	NotificationTypeExpiringSoon         NotificationType = "expiring_soon"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePaymentSucceeded,
	NotificationTypePaymentFailed,
	NotificationTypeTrialEnding,
	NotificationTypeSubscriptionCanceled,
	NotificationTypeSubscriptionRenewed,
	NotificationTypeSubscriptionExpired,
	NotificationTypeExpiringSoon,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationSeverity drives how the client renders a notification.
type NotificationSeverity string

const (
	NotificationSeverityInfo    NotificationSeverity = "info"
	NotificationSeverityWarning NotificationSeverity = "warning"
	NotificationSeverityError   NotificationSeverity = "error"
)

// IsValid reports whether the severity is known.
func (s NotificationSeverity) IsValid() bool {
	switch s {
	case NotificationSeverityInfo, NotificationSeverityWarning, NotificationSeverityError:
		return true
	}
	return false
}
