//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=mocks/mock_conn.go -package=mocks

package relay

import "context"

// Conn: живое дуплексное соединение участника со стороны движка.
type Conn interface {
	ID() string
	// Send ставит кадр в очередь отправки и никогда не блокируется.
	// false: кадр отброшен (очередь полна или соединение закрыто).
	Send(frame []byte) bool
	Close() error
}

// Store: то, что движку нужно от хранилища сессий.
type Store interface {
	RemoveParticipant(ctx context.Context, id string) error
}
