package domain

const (
	AccountTypeUser   = "user"
	AccountTypeVendor = "vendor"
	AccountTypeAdmin  = "admin"

	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	SourceBooking     = "booking"
	SourceTransaction = "transaction"
	SourceAdjustment  = "adjustment"

	EntryStatusPending   = "pending"
	EntryStatusAvailable = "available"
	EntryStatusReversed  = "reversed"
	EntryStatusPosted    = "posted"

	ReasonBooking             = "booking"
	ReasonTransaction         = "transaction"
	ReasonTransactionReversal = "transaction_reversal"
	ReasonReferralReversal    = "referral_reversal"
	ReasonAdjustment          = "adjustment"

	// Accrual subtypes
	SubtypeReferralCommission = "referral_commission"
	SubtypeCashback           = "cashback"
	SubtypeVendorShare        = "vendor_share"

	// Reversal subtypes, one per accrual subtype
	SubtypeReferralReversal    = "referral_reversal"
	SubtypeCashbackReversal    = "cashback_reversal"
	SubtypeVendorShareReversal = "vendor_share_reversal"

	BookingStatusPending   = "pending"
	BookingStatusCancelled = "cancelled"

	DefaultCurrency = "NGN"
)

// ReversalSubtype maps an accrual subtype to the subtype of its compensating entry.
func ReversalSubtype(origin string) (string, bool) {
	switch origin {
	case SubtypeReferralCommission:
		return SubtypeReferralReversal, true
	case SubtypeCashback:
		return SubtypeCashbackReversal, true
	case SubtypeVendorShare:
		return SubtypeVendorShareReversal, true
	default:
		return "", false
	}
}

// ReversalReason maps an accrual subtype to the ledger reason of its compensating entry.
func ReversalReason(origin string) string {
	if origin == SubtypeReferralCommission {
		return ReasonReferralReversal
	}
	return ReasonTransactionReversal
}

// IsReversalSubtype reports whether subtype names a compensating entry.
func IsReversalSubtype(subtype string) bool {
	switch subtype {
	case SubtypeReferralReversal, SubtypeCashbackReversal, SubtypeVendorShareReversal:
		return true
	default:
		return false
	}
}
