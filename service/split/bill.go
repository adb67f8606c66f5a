package split

import (
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Bill is an editable roster of participants sharing a total. Every edit
// recomputes all owed amounts.
type Bill struct {
	mu           sync.Mutex
	total        decimal.Decimal
	participants []Participant
	dispatching  bool
	onChange     []func(View)
}

// View is a point-in-time copy of a bill.
type View struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalShares  float64         `json:"total_shares"`
	Participants []Participant   `json:"participants"`
}

// ParticipantUpdate carries the editable fields of a participant. Nil
// fields are left unchanged.
type ParticipantUpdate struct {
	Name          *string  `json:"name,omitempty"`
	WalletAddress *string  `json:"wallet_address,omitempty"`
	Share         *float64 `json:"share,omitempty"`
}

// ErrParticipantNotFound is returned for edits naming an unknown id.
var ErrParticipantNotFound = errors.New("participant not found")

// NewBill creates an empty bill with a zero total.
func NewBill() *Bill {
	return &Bill{total: decimal.Zero}
}

// NewDefaultBill creates a bill seeded with the payer ("You") and one blank
// participant, both with a share of one.
func NewDefaultBill() *Bill {
	b := NewBill()
	b.participants = []Participant{
		NewParticipant("You", "", 1),
		NewParticipant("", "", 1),
	}
	return b
}

// View returns a copy of the bill.
func (b *Bill) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

// Participant returns a copy of one participant.
func (b *Bill) Participant(id string) (Participant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return Participant{}, false
	}
	return b.participants[i], true
}

// OnChange registers fn to be called with a fresh view after every change.
func (b *Bill) OnChange(fn func(View)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// SetTotal sets the bill total.
func (b *Bill) SetTotal(total decimal.Decimal) error {
	if err := validateTotal(total); err != nil {
		return err
	}
	return b.edit(func() error {
		b.total = total
		return nil
	})
}

// Add appends a participant and returns it with its owed amount.
func (b *Bill) Add(name, walletAddress string, share float64) (Participant, error) {
	if err := ValidateShare(share); err != nil {
		return Participant{}, err
	}
	p := NewParticipant(name, walletAddress, share)
	err := b.edit(func() error {
		b.participants = append(b.participants, p)
		return nil
	})
	if err != nil {
		return Participant{}, err
	}
	p, _ = b.Participant(p.ID)
	return p, nil
}

// Update edits one participant.
func (b *Bill) Update(id string, u ParticipantUpdate) error {
	if u.Share != nil {
		if err := ValidateShare(*u.Share); err != nil {
			return err
		}
	}
	return b.edit(func() error {
		i := b.indexLocked(id)
		if i < 0 {
			return ErrParticipantNotFound
		}
		p := &b.participants[i]
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.WalletAddress != nil {
			p.WalletAddress = strings.TrimSpace(*u.WalletAddress)
		}
		if u.Share != nil {
			p.Share = *u.Share
		}
		return nil
	})
}

// Remove deletes one participant.
func (b *Bill) Remove(id string) error {
	return b.edit(func() error {
		i := b.indexLocked(id)
		if i < 0 {
			return ErrParticipantNotFound
		}
		b.participants = append(b.participants[:i], b.participants[i+1:]...)
		return nil
	})
}

// ApplyShares applies suggested shares and total, e.g. from receipt
// parsing. Names match case-insensitively; a non-positive suggestion counts
// as one. Participants without a suggestion keep their share.
func (b *Bill) ApplyShares(total decimal.Decimal, shares map[string]float64) error {
	if err := validateTotal(total); err != nil {
		return err
	}
	byName := make(map[string]float64, len(shares))
	for name, s := range shares {
		byName[strings.ToLower(strings.TrimSpace(name))] = s
	}
	return b.edit(func() error {
		b.total = total.Round(Places)
		for i := range b.participants {
			s, ok := byName[strings.ToLower(strings.TrimSpace(b.participants[i].Name))]
			if !ok {
				continue
			}
			if ValidateShare(s) != nil {
				s = 1
			}
			b.participants[i].Share = s
		}
		return nil
	})
}

func (b *Bill) edit(fn func() error) error {
	b.mu.Lock()
	if b.dispatching {
		b.mu.Unlock()
		return ErrDispatchInProgress
	}
	if err := fn(); err != nil {
		b.mu.Unlock()
		return err
	}
	if err := b.recomputeLocked(); err != nil {
		b.mu.Unlock()
		return err
	}
	view, listeners := b.viewLocked(), b.listenersLocked()
	b.mu.Unlock()
	notify(listeners, view)
	return nil
}

func (b *Bill) recomputeLocked() error {
	shares := make([]float64, len(b.participants))
	for i, p := range b.participants {
		shares[i] = p.Share
	}
	owed, err := Allocate(b.total, shares)
	if err != nil {
		return err
	}
	for i := range b.participants {
		b.participants[i].OwedAmount = owed[i]
	}
	return nil
}

// setStatus is the only writer of payment status.
func (b *Bill) setStatus(id string, status PaymentStatus, lastErr, txHash string) {
	b.mu.Lock()
	i := b.indexLocked(id)
	if i < 0 {
		b.mu.Unlock()
		return
	}
	p := &b.participants[i]
	p.PaymentStatus = status
	p.LastError = lastErr
	if txHash != "" {
		p.LastTxHash = txHash
	}
	view, listeners := b.viewLocked(), b.listenersLocked()
	b.mu.Unlock()
	notify(listeners, view)
}

// revertSuccess returns id to idle if it is still showing success.
func (b *Bill) revertSuccess(id string) {
	b.mu.Lock()
	i := b.indexLocked(id)
	if i < 0 || b.participants[i].PaymentStatus != StatusSuccess {
		b.mu.Unlock()
		return
	}
	b.participants[i].PaymentStatus = StatusIdle
	view, listeners := b.viewLocked(), b.listenersLocked()
	b.mu.Unlock()
	notify(listeners, view)
}

func (b *Bill) beginDispatch() ([]Participant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dispatching {
		return nil, ErrDispatchInProgress
	}
	if err := b.recomputeLocked(); err != nil {
		return nil, err
	}
	b.dispatching = true
	return append([]Participant(nil), b.participants...), nil
}

func (b *Bill) endDispatch() {
	b.mu.Lock()
	b.dispatching = false
	b.mu.Unlock()
}

func (b *Bill) viewLocked() View {
	var total float64
	for _, p := range b.participants {
		total += p.Share
	}
	return View{
		TotalAmount:  b.total,
		TotalShares:  total,
		Participants: append([]Participant(nil), b.participants...),
	}
}

func (b *Bill) listenersLocked() []func(View) {
	return append([]func(View){}, b.onChange...)
}

func (b *Bill) indexLocked(id string) int {
	for i, p := range b.participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func notify(listeners []func(View), v View) {
	for _, fn := range listeners {
		fn(v)
	}
}
