package offer

import "testing"

func elig(canClaim, isClaimed, missingLink bool) *Eligibility {
	return &Eligibility{CanClaim: canClaim, IsClaimed: isClaimed, MissingRequiredAccountLink: missingLink}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		offer Offer
		want  Category
	}{
		{
			name:  "no eligibility data",
			offer: Offer{Title: "Ghost", DeliveryMethod: DeliveryExternal},
			want:  NotClaimable,
		},
		{
			name: "external journey with claimable sub-offer",
			offer: Offer{
				DeliveryMethod: DeliveryExternal,
				LinkedJourney:  []SubOffer{{Self: elig(true, false, false)}},
			},
			want: ExternalClaimable,
		},
		{
			name: "journey with one claimed sub-offer hides unclaimed siblings",
			offer: Offer{
				DeliveryMethod: DeliveryExternal,
				LinkedJourney: []SubOffer{
					{Self: elig(true, false, false)},
					{Self: elig(false, true, false)},
					{Self: elig(true, false, false)},
				},
			},
			want: AlreadyClaimed,
		},
		{
			name: "journey sub-offers without eligibility are ignored",
			offer: Offer{
				DeliveryMethod: DeliveryDirect,
				LinkedJourney:  []SubOffer{{}, {Self: elig(true, false, false)}},
			},
			want: DirectClaimable,
		},
		{
			name: "journey where no sub-offer has eligibility",
			offer: Offer{
				DeliveryMethod: DeliveryExternal,
				LinkedJourney:  []SubOffer{{}, {}},
			},
			want: NotClaimable,
		},
		{
			name:  "account link required",
			offer: Offer{Title: "Linked", Self: elig(false, false, true)},
			want:  AccountLinkRequired,
		},
		{
			name:  "account link flag ignored when claimable",
			offer: Offer{DeliveryMethod: DeliveryExternal, Self: elig(true, false, true)},
			want:  ExternalClaimable,
		},
		{
			name:  "claimed wins over account link",
			offer: Offer{Self: elig(false, true, true)},
			want:  AlreadyClaimed,
		},
		{
			name:  "direct entitlement",
			offer: Offer{DeliveryMethod: DeliveryDirect, Self: elig(true, false, false)},
			want:  DirectClaimable,
		},
		{
			name:  "in-game loot",
			offer: Offer{DeliveryMethod: DeliveryInGame, Self: elig(true, false, false)},
			want:  ItemClaimable,
		},
		{
			name:  "unknown delivery method",
			offer: Offer{DeliveryMethod: DeliveryUnknown, Self: elig(true, false, false)},
			want:  NotClaimable,
		},
		{
			name:  "cannot claim without a reason",
			offer: Offer{DeliveryMethod: DeliveryExternal, Self: elig(false, false, false)},
			want:  NotClaimable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.offer); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssess(t *testing.T) {
	o := Offer{LinkedJourney: []SubOffer{
		{Self: elig(false, false, true)},
		{Self: elig(true, false, false)},
	}}
	got, ok := Assess(o)
	if !ok {
		t.Fatal("Assess() reported no eligibility data")
	}
	want := Eligibility{CanClaim: true, MissingRequiredAccountLink: true}
	if got != want {
		t.Errorf("Assess() = %+v, want %+v", got, want)
	}

	if _, ok := Assess(Offer{}); ok {
		t.Error("Assess() on empty offer reported data")
	}
}

func TestParseDeliveryMethod(t *testing.T) {
	tests := []struct {
		in   string
		want DeliveryMethod
	}{
		{"EXTERNAL_OFFER", DeliveryExternal},
		{"DIRECT_ENTITLEMENT", DeliveryDirect},
		{"IN_GAME_LOOT", DeliveryInGame},
		{"", DeliveryUnknown},
		{"SOMETHING_NEW", DeliveryUnknown},
	}
	for _, tt := range tests {
		if got := ParseDeliveryMethod(tt.in); got != tt.want {
			t.Errorf("ParseDeliveryMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPartition_KeepsCatalogOrder(t *testing.T) {
	offers := []Offer{
		{ID: "1", DeliveryMethod: DeliveryExternal, Self: elig(true, false, false)},
		{ID: "2"},
		{ID: "3", DeliveryMethod: DeliveryExternal, Self: elig(true, false, false)},
		{ID: "4", Self: elig(false, true, false)},
	}
	got := Partition(offers)

	ext := got[ExternalClaimable]
	if len(ext) != 2 || ext[0].ID != "1" || ext[1].ID != "3" {
		t.Errorf("external = %+v, want ids [1 3]", ext)
	}
	if len(got[NotClaimable]) != 1 || len(got[AlreadyClaimed]) != 1 {
		t.Errorf("unexpected partition sizes: %v", got)
	}
}

func TestCategoryString(t *testing.T) {
	for _, c := range Categories {
		if c.String() == "" {
			t.Errorf("category %d has empty name", int(c))
		}
	}
	if got := Category(99).String(); got != "category(99)" {
		t.Errorf("unknown category = %q", got)
	}
}
