// Package imapmail provides the mailbox source backed by an IMAP server.
package imapmail

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/d0npedro/mailinvoicegrabber/internal/config"
	"github.com/d0npedro/mailinvoicegrabber/internal/core"
)

const dialTimeout = 30 * time.Second

// Client is a read-only IMAP session on one mailbox folder.
type Client struct {
	conn   *client.Client
	logger *zap.Logger
}

// Dial connects, authenticates and selects the account's folder read-only.
// Authentication failures are distinguishable so a multi-account run can skip
// the account and continue.
func Dial(account config.Account, logger *zap.Logger) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", account.Server, account.Port)
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := client.DialWithDialerTLS(dialer, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", core.ErrConnection, addr, err)
	}

	if err := conn.Login(account.Username, account.Password); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("%w: login for %s: %v", core.ErrAuthFailed, account.Username, err)
	}

	if _, err := conn.Select(account.Folder, true); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("selecting folder %s: %w", account.Folder, err)
	}

	logger.Info("Connected to mailbox",
		zap.String("server", account.Server),
		zap.String("folder", account.Folder))

	return &Client{conn: conn, logger: logger}, nil
}

// SearchYear returns the UIDs of all messages dated within the given year.
func (c *Client) SearchYear(ctx context.Context, year int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	criteria.Before = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)

	uids, err := c.conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("searching mailbox: %w", err)
	}

	out := make([]string, len(uids))
	for i, uid := range uids {
		out[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return out, nil
}

// MessageSize fetches the RFC822 size of one message without its body.
func (c *Client) MessageSize(ctx context.Context, uid string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	seqSet, err := uidSeqSet(uid)
	if err != nil {
		return 0, err
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.conn.UidFetch(seqSet, []imap.FetchItem{imap.FetchRFC822Size}, messages)
	}()

	var size int64 = -1
	for msg := range messages {
		size = int64(msg.Size)
	}
	if err := <-done; err != nil {
		return 0, fmt.Errorf("fetching size of message %s: %w", uid, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("no size returned for message %s", uid)
	}
	return size, nil
}

// FetchMessage downloads the raw RFC822 message. The peek section keeps the
// server from flagging the message as seen.
func (c *Client) FetchMessage(ctx context.Context, uid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqSet, err := uidSeqSet(uid)
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.conn.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var raw []byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("reading message %s: %w", uid, err)
		}
		raw = data
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", uid, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("no body returned for message %s", uid)
	}
	return raw, nil
}

// Close logs out of the session.
func (c *Client) Close() error {
	return c.conn.Logout()
}

func uidSeqSet(uid string) (*imap.SeqSet, error) {
	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message uid %q: %w", uid, err)
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(n))
	return seqSet, nil
}
