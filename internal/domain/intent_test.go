// internal/domain/intent_test.go
package domain

import "testing"

func TestIntentResourceKeys(t *testing.T) {
	tests := []struct {
		name   string
		intent PendingIntent
		want   string
	}{
		{"transfer", PendingIntent{Kind: IntentTransfer, TicketID: 42}, "ticket:42"},
		{"use zero id", PendingIntent{Kind: IntentUseTicket}, "ticket:0"},
		{"list", PendingIntent{Kind: IntentListResale, TicketID: 18446744073709551615}, "ticket:18446744073709551615"},
		{"buy resale", PendingIntent{Kind: IntentBuyResale, OrderID: 7}, "order:7"},
		{"purchase", PendingIntent{Kind: IntentPurchase, ConcertID: 3}, "concert:3"},
		{"stake", PendingIntent{Kind: IntentStake}, "flt"},
		{"send", PendingIntent{Kind: IntentSend}, "flt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.intent.Resource(); got != tt.want {
				t.Fatalf("Resource() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalPrecondition(t *testing.T) {
	local := []ErrorKind{
		KindInsufficientBalance, KindInsufficientStaked, KindNoRewards,
		KindNotResellable, KindPriceAboveCap, KindVerificationTooLow,
		KindResourceBusy, KindNotConnected,
	}
	for _, kind := range local {
		if !LocalPrecondition(NewError(kind, "x")) {
			t.Fatalf("%s must count as a local precondition", kind)
		}
	}
	remote := []ErrorKind{
		KindTransactionReverted, KindTransientRpc, KindUserRejected,
		KindTimeout, KindCancelled, KindApprovalFailed,
	}
	for _, kind := range remote {
		if LocalPrecondition(NewError(kind, "x")) {
			t.Fatalf("%s must not count as a local precondition", kind)
		}
	}
}
