// Package pcsc adapts a PC/SC smart card reader to apdu.Transport, so the
// protocol and lds packages can drive a real contactless chip the same way
// they drive the scripted transports in their own tests. It is grounded on
// card/reader.go's scard.Context/scard.Card wrapper, generalized from a
// single blocking Transmit method to the context-aware apdu.Transport
// interface the rest of this module is built against.
package pcsc

import (
	"context"
	"fmt"

	"github.com/ebfe/scard"
)

// Transport wraps a connected PC/SC card so it satisfies apdu.Transport.
type Transport struct {
	ctx  *scard.Context
	card *scard.Card
	name string
	atr  []byte
}

// ListReaders returns the names of every PC/SC reader currently attached.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("pcsc: list readers: %w", err)
	}
	return readers, nil
}

// Connect opens a shared connection to the card sitting in the reader at
// readerIndex (as returned by ListReaders).
func Connect(readerIndex int) (*Transport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("pcsc: establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: list readers: %w", err)
	}
	if len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: no smart card readers found")
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: reader index %d out of range (0-%d)", readerIndex, len(readers)-1)
	}

	readerName := readers[readerIndex]
	card, err := ctx.Connect(readerName, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("pcsc: connect to card in reader %q: %w", readerName, err)
	}

	status, err := card.Status()
	if err != nil {
		card.Disconnect(scard.LeaveCard)
		ctx.Release()
		return nil, fmt.Errorf("pcsc: card status: %w", err)
	}

	return &Transport{ctx: ctx, card: card, name: readerName, atr: status.Atr}, nil
}

// ConnectFirst connects to the card in the first listed reader (index 0);
// other readers are not tried.
func ConnectFirst() (*Transport, error) { return Connect(0) }

// Transmit sends a raw command APDU to the card and returns its raw
// response, satisfying apdu.Transport. A contactless chip has no cancellable
// in-flight transmit, so ctx is only checked before issuing the command; a
// cancelled context aborts the exchange without starting it.
func (t *Transport) Transmit(ctx context.Context, command []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := t.card.Transmit(command)
	if err != nil {
		return nil, fmt.Errorf("pcsc: transmit: %w", err)
	}
	return resp, nil
}

// Reconnect performs a card reset: a warm reset if cold is false, otherwise
// a full power cycle. It refreshes the stored ATR on success.
func (t *Transport) Reconnect(cold bool) error {
	initType := scard.ResetCard
	if cold {
		initType = scard.UnpowerCard
	}
	if err := t.card.Reconnect(scard.ShareShared, scard.ProtocolAny, initType); err != nil {
		return fmt.Errorf("pcsc: reconnect: %w", err)
	}
	if status, err := t.card.Status(); err == nil {
		t.atr = status.Atr
	}
	return nil
}

// Name returns the PC/SC reader name this transport is connected through.
func (t *Transport) Name() string { return t.name }

// ATR returns the card's Answer To Reset bytes.
func (t *Transport) ATR() []byte { return t.atr }

// ATRHex returns the ATR formatted as uppercase hex.
func (t *Transport) ATRHex() string { return fmt.Sprintf("%X", t.atr) }

// Close disconnects from the card and releases the PC/SC context.
func (t *Transport) Close() error {
	if t.card != nil {
		t.card.Disconnect(scard.LeaveCard)
	}
	if t.ctx != nil {
		t.ctx.Release()
	}
	return nil
}
