package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataFor_KnownCode(t *testing.T) {
	meta := MetadataFor(CodeSubscriptionRequired)
	if meta.HTTPStatus != http.StatusForbidden {
		t.Fatalf("expected 403 for subscription_required, got %d", meta.HTTPStatus)
	}
	if !meta.DetailsAllowed {
		t.Fatal("entitlement codes must allow details")
	}
}

func TestMetadataFor_UnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("nope"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestIsEntitlementCode(t *testing.T) {
	for _, code := range []Code{
		CodeSubscriptionRequired, CodeInvalidSubscription,
		CodeDateBeforePeriod, CodeDateAfterPeriod, CodeDateInPast,
	} {
		if !IsEntitlementCode(code) {
			t.Fatalf("expected %s to be an entitlement code", code)
		}
	}
	if IsEntitlementCode(CodeInternal) {
		t.Fatal("internal error is not an entitlement code")
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "call provider")
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	typed := As(err)
	if typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected dependency code, got %v", typed)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("root"), "top")
	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain of at least 2, got %d", len(dump.Chain))
	}
}
