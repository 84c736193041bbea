package entitlement

import (
	"fmt"
	"time"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
)

// pastSlack tolerates timezone skew between the client's calendar and server
// time when rejecting generation for dates already gone by.
const pastSlack = 24 * time.Hour

// CheckRange decides whether the subscription permits meal plan generation
// for every calendar day in [start, end]. It is the authorization boundary:
// clients run an equivalent check for UI gating, but only this one counts.
func CheckRange(sub *models.Subscription, start, end time.Time, now time.Time) error {
	if sub == nil || !sub.Plan.IsPaid() || sub.Status != enums.SubscriptionStatusActive {
		return pkgerrors.New(pkgerrors.CodeSubscriptionRequired,
			"Necesitás una suscripción activa para generar planes de comida")
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		// A paid record without period bounds is corrupt, not unlimited.
		return pkgerrors.New(pkgerrors.CodeInvalidSubscription,
			"Tu suscripción tiene datos inválidos, contactá a soporte")
	}

	earliest := normalizeDay(start)
	latest := normalizeDay(end)
	if latest.Before(earliest) {
		earliest, latest = latest, earliest
	}
	periodStart := normalizeDay(*sub.CurrentPeriodStart)
	periodEnd := normalizeDay(*sub.CurrentPeriodEnd)

	if earliest.Before(periodStart) {
		return pkgerrors.New(pkgerrors.CodeDateBeforePeriod,
			fmt.Sprintf("La fecha solicitada es anterior al inicio de tu período de suscripción (%s)",
				periodStart.Format("2006-01-02")))
	}
	if latest.After(periodEnd) {
		return pkgerrors.New(pkgerrors.CodeDateAfterPeriod, horizonMessage(sub.Plan))
	}
	if latest.Before(normalizeDay(now).Add(-pastSlack)) {
		return pkgerrors.New(pkgerrors.CodeDateInPast,
			"No se pueden generar planes para fechas pasadas")
	}
	return nil
}

// CheckDate is CheckRange for a single calendar day.
func CheckDate(sub *models.Subscription, date time.Time, now time.Time) error {
	return CheckRange(sub, date, date, now)
}

func horizonMessage(plan enums.Plan) string {
	days := plan.HorizonDays()
	if days <= 0 {
		return "La fecha solicitada está fuera de tu período de suscripción"
	}
	return fmt.Sprintf("Tu plan %s permite generar hasta %d días por adelantado dentro del período vigente",
		planLabel(plan), days)
}

func planLabel(plan enums.Plan) string {
	switch plan {
	case enums.PlanWeekly:
		return "semanal"
	case enums.PlanMonthly:
		return "mensual"
	default:
		return string(plan)
	}
}

// normalizeDay collapses a timestamp to its UTC calendar day so comparisons
// near midnight do not flap by an hour of offset.
func normalizeDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
