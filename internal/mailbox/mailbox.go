package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
	"github.com/pkg/errors"
)

// Режим защиты соединения. Явный enum вместо булевого ssl:
// у булевого флага двоякая трактовка (STARTTLS или plaintext), enum её снимает.
const (
	SecurityImplicitTLS = "implicit_tls"
	SecurityStartTLS    = "starttls"
	SecurityPlaintext   = "plaintext"
)

// Message — письмо в том виде, в котором его видит извлечение трек-номеров.
type Message struct {
	UID     uint32
	Sender  string // голый адрес, без display name
	Subject string
	Text    string
	HTML    string
}

type Config struct {
	Server   string
	Port     int
	Username string
	Password string
	Folder   string
	Security string // implicit_tls | starttls | plaintext
}

// Mailbox — IMAP-коллаборатор. Каждый вызов открывает и закрывает соединение:
// опросы редкие, держать сессию между циклами не за чем.
type Mailbox struct {
	cfg Config
}

func New(cfg Config) *Mailbox {
	if cfg.Port <= 0 {
		cfg.Port = 993
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Security == "" {
		cfg.Security = SecurityImplicitTLS
	}
	return &Mailbox{cfg: cfg}
}

func (m *Mailbox) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)

	var client *imapclient.Client
	var err error
	switch m.cfg.Security {
	case SecurityStartTLS:
		client, err = imapclient.DialStartTLS(addr, nil)
	case SecurityPlaintext:
		client, err = imapclient.DialInsecure(addr, nil)
	default:
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connect imap %s", addr)
	}

	if err := client.Login(m.cfg.Username, m.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, errors.Wrapf(err, "imap login %s", m.cfg.Username)
	}
	return client, nil
}

// CheckConnection проверяет соединение и логин. Для флоу настройки.
func (m *Mailbox) CheckConnection(_ context.Context) error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	_ = client.Logout().Wait()
	return nil
}

// Fetch возвращает письма не старше since, максимум max штук, свежие первыми.
// max ограничивает и время сканирования: медленный ящик не задушит цикл.
func (m *Mailbox) Fetch(_ context.Context, since time.Time, max int) ([]Message, error) {
	client, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.cfg.Folder, nil).Wait(); err != nil {
		return nil, errors.Wrapf(err, "select %s", m.cfg.Folder)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, errors.Wrap(err, "uid search")
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if max > 0 && len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		out := Message{UID: uint32(buf.UID)}
		if buf.Envelope != nil {
			out.Subject = buf.Envelope.Subject
			if len(buf.Envelope.From) > 0 {
				out.Sender = buf.Envelope.From[0].Addr()
			}
		}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			out.Text, out.HTML = splitBody(raw)
		}
		messages = append(messages, out)
	}
	if err := fetchCmd.Close(); err != nil {
		return messages, errors.Wrap(err, "fetch close")
	}

	// UID-ы идут по возрастанию, отдаём свежие первыми.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkSeen ставит \Seen. Используется только в dedicated-режиме.
func (m *Mailbox) MarkSeen(_ context.Context, uid uint32) error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(m.cfg.Folder, nil).Wait(); err != nil {
		return errors.Wrapf(err, "select %s", m.cfg.Folder)
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	return storeCmd.Close()
}

// splitBody разбирает MIME и достаёт text/plain и text/html части.
func splitBody(raw []byte) (text, html string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Не MIME — трактуем всё как plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			text = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			html = string(body)
		}
	}
	return text, html
}
