package order

// Kind tags one reconciliation action classified from the user's turn.
type Kind string

const (
	KindAdd               Kind = "add"
	KindUpdate            Kind = "update"
	KindRemove            Kind = "remove"
	KindIncreaseLast      Kind = "increase_last"
	KindDecreaseLast      Kind = "decrease_last"
	KindUnavailable       Kind = "unavailable"
	KindNegotiationFailed Kind = "negotiation_failed"
	KindNothingElse       Kind = "nothing_else"
	KindShowList          Kind = "show_list"
	KindFinalize          Kind = "finalize"
	KindUnclear           Kind = "unclear"
)

// Action is one tagged order mutation (or non-mutation) with its
// optional parameters.
type Action struct {
	Kind     Kind    `json:"action"`
	Item     string  `json:"item,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

var allKinds = []Kind{
	KindAdd, KindUpdate, KindRemove,
	KindIncreaseLast, KindDecreaseLast,
	KindUnavailable, KindNegotiationFailed,
	KindNothingElse, KindShowList, KindFinalize, KindUnclear,
}

// KnownKind reports whether k is a declared action tag.
func KnownKind(k Kind) bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}
