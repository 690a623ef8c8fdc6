package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Session is the live network connection owned by exactly one Instance.
// The production implementation wraps a whatsmeow client; tests substitute
// fakes through the registry's session factory.
type Session interface {
	Connect() error
	Disconnect()
	Close()

	AddEventHandler(fn func(evt any)) uint32
	RemoveEventHandler(id uint32) bool

	// NeedsPairing reports whether the credential store has no device
	// identity yet, i.e. a QR scan is required.
	NeedsPairing() bool
	// PairedID returns the phone number of the paired device, or "".
	PairedID() string
	// QRChannel must be called before Connect and only when NeedsPairing.
	QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)

	SendText(ctx context.Context, chatJID, text string) error
	MarkRead(chat, sender types.JID, ids []string) error
	RejectCall(from types.JID, callID string) error
}

// SessionFactory provisions a Session for a tenant. dir is the tenant's
// private session directory; the factory owns creating it.
type SessionFactory func(ctx context.Context, tenantID, dir string) (Session, error)

// NewWhatsmeowFactory returns the production factory: a per-tenant sqlite
// credential container under dir plus a whatsmeow client on its first
// device.
func NewWhatsmeowFactory() SessionFactory {
	return func(ctx context.Context, tenantID, dir string) (Session, error) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create session dir for %s: %w", tenantID, err)
		}

		dbLog := waLog.Stdout("Database", "WARN", true)
		clientLog := waLog.Stdout("Client", "INFO", true)

		dbPath := filepath.Join(dir, "wa.db")
		container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
		if err != nil {
			return nil, fmt.Errorf("open credential store for %s: %w", tenantID, err)
		}

		device, err := container.GetFirstDevice(ctx)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("load device for %s: %w", tenantID, err)
		}

		return &waSession{
			client:    whatsmeow.NewClient(device, clientLog),
			container: container,
		}, nil
	}
}

type waSession struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
}

func (s *waSession) Connect() error { return s.client.Connect() }

func (s *waSession) Disconnect() { s.client.Disconnect() }

func (s *waSession) Close() {
	s.container.Close()
}

func (s *waSession) AddEventHandler(fn func(evt any)) uint32 {
	return s.client.AddEventHandler(func(evt interface{}) { fn(evt) })
}

func (s *waSession) RemoveEventHandler(id uint32) bool {
	return s.client.RemoveEventHandler(id)
}

func (s *waSession) NeedsPairing() bool {
	return s.client.Store.ID == nil
}

func (s *waSession) PairedID() string {
	if s.client.Store.ID == nil {
		return ""
	}
	return s.client.Store.ID.User
}

func (s *waSession) QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return s.client.GetQRChannel(ctx)
}

func (s *waSession) SendText(ctx context.Context, chatJID, text string) error {
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", chatJID, err)
	}
	_, err = s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	return err
}

func (s *waSession) MarkRead(chat, sender types.JID, ids []string) error {
	msgIDs := make([]types.MessageID, len(ids))
	for i, id := range ids {
		msgIDs[i] = types.MessageID(id)
	}
	return s.client.MarkRead(context.Background(), msgIDs, time.Now(), chat, sender)
}

func (s *waSession) RejectCall(from types.JID, callID string) error {
	return s.client.RejectCall(context.Background(), from, callID)
}
