// Package session models the terminal's workflow state machine: which
// screen is showing, which modal (if any) is open, and the in-progress
// cart. Transitions are pure and reject calls that make no sense for the
// current state, so an out-of-order tap can never corrupt the session.
package session

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sofra-pos/api/internal/pricing"
)

var ErrInvalidTransition = errors.New("invalid session transition")

// Screen is the terminal's top-level view.
type Screen string

const (
	ScreenUserSelect  Screen = "user_select"
	ScreenTableSelect Screen = "table_select"
	ScreenOrder       Screen = "order"
)

// Modal is the single overlay that may be open on top of a screen.
// Exactly one modal can be open at a time; ModalNone means none.
type Modal string

const (
	ModalNone     Modal = ""
	ModalPin      Modal = "pin"
	ModalPayment  Modal = "payment"
	ModalDiscount Modal = "discount"
	ModalTransfer Modal = "transfer"
	ModalMerge    Modal = "merge"
)

// CartLine is one product in the unsent cart. Repeated taps on the same
// product bump Qty instead of adding a line.
type CartLine struct {
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int32
}

// Session is the full terminal state.
type Session struct {
	Screen Screen
	Modal  Modal

	UserID  uuid.UUID
	TableID uuid.UUID
	// SaleID is the open sale already on the selected table, if any.
	SaleID uuid.UUID

	Cart           []CartLine
	SaleDiscount   *pricing.Discount
	MergeSelection []uuid.UUID

	pendingUserID uuid.UUID
}

// New returns a session at the login screen.
func New() Session {
	return Session{Screen: ScreenUserSelect, Modal: ModalNone}
}

// SelectUser picks a staff member on the login screen. Users with a PIN
// get the PIN modal; the rest sign straight in.
func (s *Session) SelectUser(userID uuid.UUID, requiresPin bool) error {
	if s.Screen != ScreenUserSelect || s.Modal != ModalNone {
		return ErrInvalidTransition
	}
	if requiresPin {
		s.pendingUserID = userID
		s.Modal = ModalPin
		return nil
	}
	s.UserID = userID
	s.Screen = ScreenTableSelect
	return nil
}

// ConfirmPin completes a PIN-gated sign-in after the server accepted the PIN.
func (s *Session) ConfirmPin() error {
	if s.Modal != ModalPin {
		return ErrInvalidTransition
	}
	s.UserID = s.pendingUserID
	s.pendingUserID = uuid.Nil
	s.Modal = ModalNone
	s.Screen = ScreenTableSelect
	return nil
}

// CancelPin dismisses the PIN modal, staying on the login screen.
func (s *Session) CancelPin() error {
	if s.Modal != ModalPin {
		return ErrInvalidTransition
	}
	s.pendingUserID = uuid.Nil
	s.Modal = ModalNone
	return nil
}

// SelectTable opens the order screen for a table. openSaleID carries the
// table's current sale (uuid.Nil for a free table) so new items append to it.
func (s *Session) SelectTable(tableID, openSaleID uuid.UUID) error {
	if s.Screen != ScreenTableSelect || s.Modal != ModalNone {
		return ErrInvalidTransition
	}
	s.TableID = tableID
	s.SaleID = openSaleID
	s.Cart = nil
	s.SaleDiscount = nil
	s.Screen = ScreenOrder
	return nil
}

// SetExistingSale records the sale the server reports for the selected
// table, e.g. after a submit creates one.
func (s *Session) SetExistingSale(saleID uuid.UUID) error {
	if s.Screen != ScreenOrder {
		return ErrInvalidTransition
	}
	s.SaleID = saleID
	return nil
}

// AddToCart registers one tap on a product.
func (s *Session) AddToCart(productID uuid.UUID, name string, unitPrice decimal.Decimal) error {
	if s.Screen != ScreenOrder || s.Modal != ModalNone {
		return ErrInvalidTransition
	}
	for i := range s.Cart {
		if s.Cart[i].ProductID == productID {
			s.Cart[i].Qty++
			return nil
		}
	}
	s.Cart = append(s.Cart, CartLine{ProductID: productID, Name: name, UnitPrice: unitPrice, Qty: 1})
	return nil
}

// RemoveFromCart takes one unit off a line, dropping the line at zero.
func (s *Session) RemoveFromCart(productID uuid.UUID) error {
	if s.Screen != ScreenOrder || s.Modal != ModalNone {
		return ErrInvalidTransition
	}
	for i := range s.Cart {
		if s.Cart[i].ProductID != productID {
			continue
		}
		s.Cart[i].Qty--
		if s.Cart[i].Qty <= 0 {
			s.Cart = append(s.Cart[:i], s.Cart[i+1:]...)
		}
		return nil
	}
	return ErrInvalidTransition
}

// CartTotal is the running total of the unsent cart.
func (s *Session) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Cart {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Qty)))
	}
	return total
}

// OpenModal shows one of the action overlays. All four act on the table
// being served, so they require the order screen; a completed transfer or
// merge then returns to the floor plan via ResetToTableSelect.
func (s *Session) OpenModal(m Modal) error {
	if s.Modal != ModalNone {
		return ErrInvalidTransition
	}
	switch m {
	case ModalPayment, ModalDiscount, ModalTransfer, ModalMerge:
		if s.Screen != ScreenOrder {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	s.Modal = m
	if m == ModalMerge {
		s.MergeSelection = nil
	}
	return nil
}

// CloseModal dismisses the open overlay.
func (s *Session) CloseModal() error {
	if s.Modal == ModalNone || s.Modal == ModalPin {
		return ErrInvalidTransition
	}
	s.Modal = ModalNone
	s.MergeSelection = nil
	return nil
}

// ConfirmDiscount records the sale-level discount entered in the discount
// modal and closes it. A nil discount clears any previous one.
func (s *Session) ConfirmDiscount(d *pricing.Discount) error {
	if s.Modal != ModalDiscount {
		return ErrInvalidTransition
	}
	s.SaleDiscount = d
	s.Modal = ModalNone
	return nil
}

// ToggleMergeTable adds or removes a table from the merge selection.
func (s *Session) ToggleMergeTable(tableID uuid.UUID) error {
	if s.Modal != ModalMerge {
		return ErrInvalidTransition
	}
	for i, id := range s.MergeSelection {
		if id == tableID {
			s.MergeSelection = append(s.MergeSelection[:i], s.MergeSelection[i+1:]...)
			return nil
		}
	}
	s.MergeSelection = append(s.MergeSelection, tableID)
	return nil
}

// ResetToTableSelect returns to the floor plan after a submit or payment,
// keeping the signed-in user.
func (s *Session) ResetToTableSelect() {
	s.Screen = ScreenTableSelect
	s.Modal = ModalNone
	s.TableID = uuid.Nil
	s.SaleID = uuid.Nil
	s.Cart = nil
	s.SaleDiscount = nil
	s.MergeSelection = nil
}

// Logout clears everything back to the login screen.
func (s *Session) Logout() {
	*s = New()
}
