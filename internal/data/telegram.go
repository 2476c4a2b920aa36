package data

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/patrickmn/go-cache"

	"github.com/bizdev-tools/tg-digest/internal/biz/domain"
	"github.com/bizdev-tools/tg-digest/internal/biz/repo"
	"github.com/bizdev-tools/tg-digest/internal/logger"
)

const (
	dialogPageSize = 100

	senderCacheTTL     = 6 * time.Hour
	senderCacheCleanup = 30 * time.Minute

	// channel ids are marked as -(channelIDOffset + id)
	channelIDOffset = 1000000000000
)

// TelegramAPI is the subset of the raw MTProto API used by the dialog source
type TelegramAPI interface {
	MessagesGetDialogs(ctx context.Context, request *tg.MessagesGetDialogsRequest) (tg.MessagesDialogsClass, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// telegramSource implements the Dialog Source on the Telegram API
type telegramSource struct {
	api     TelegramAPI
	senders *cache.Cache

	mu     sync.RWMutex
	peers  map[int64]tg.InputPeerClass // by marked dialog id
	selfID int64                       // 0 until the account's own user is known
}

// NewTelegramSource creates a dialog source. self is the authorized account's user,
// used to attribute outgoing messages; nil falls back to the self flag in responses.
func NewTelegramSource(api TelegramAPI, self *tg.User) repo.DialogSource {
	s := &telegramSource{
		api:     api,
		senders: cache.New(senderCacheTTL, senderCacheCleanup),
		peers:   make(map[int64]tg.InputPeerClass),
	}
	if self != nil {
		s.cacheUsers([]tg.UserClass{self})
		s.selfID = self.ID
	}
	return s
}

// Dialogs lists every dialog in the order the platform returns them
func (s *telegramSource) Dialogs(ctx context.Context) ([]domain.Dialog, error) {
	log := logger.Component("telegram")

	var result []domain.Dialog
	req := &tg.MessagesGetDialogsRequest{
		OffsetPeer: &tg.InputPeerEmpty{},
		Limit:      dialogPageSize,
	}

	for {
		resp, err := s.api.MessagesGetDialogs(ctx, req)
		if err != nil {
			return nil, wrapTelegramError(err)
		}

		var (
			dialogs  []tg.DialogClass
			messages []tg.MessageClass
			chats    []tg.ChatClass
			users    []tg.UserClass
			total    = -1
		)
		switch r := resp.(type) {
		case *tg.MessagesDialogs:
			dialogs, messages, chats, users = r.Dialogs, r.Messages, r.Chats, r.Users
		case *tg.MessagesDialogsSlice:
			dialogs, messages, chats, users = r.Dialogs, r.Messages, r.Chats, r.Users
			total = r.Count
		case *tg.MessagesDialogsNotModified:
			return result, nil
		default:
			return nil, fmt.Errorf("unexpected dialogs response %T", resp)
		}

		s.cacheUsers(users)
		entities := newEntities(chats, users)

		for _, dc := range dialogs {
			d, ok := dc.(*tg.Dialog)
			if !ok {
				continue // folders
			}
			// forbidden chats and channels have no readable history
			dialog, peer, ok := entities.dialog(d)
			if !ok {
				log.Debug().Int64("chat_id", markedPeerID(d.Peer)).Msg("Skipping dialog with unresolved peer")
				continue
			}
			s.mu.Lock()
			s.peers[dialog.ID] = peer
			s.mu.Unlock()
			result = append(result, dialog)
		}

		// a full response carries every dialog
		if total < 0 || len(dialogs) == 0 || len(result) >= total {
			break
		}

		last, ok := dialogs[len(dialogs)-1].(*tg.Dialog)
		if !ok {
			break
		}
		peer, ok := entities.inputPeer(last.Peer)
		if !ok {
			break
		}
		req = &tg.MessagesGetDialogsRequest{
			OffsetDate: topMessageDate(messages, last),
			OffsetID:   last.TopMessage,
			OffsetPeer: peer,
			Limit:      dialogPageSize,
		}
	}

	log.Info().Int("dialogs", len(result)).Msg("Fetched dialogs")
	return result, nil
}

// History returns up to limit messages older than offsetID, newest first
func (s *telegramSource) History(ctx context.Context, dialog domain.Dialog, offsetID, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	peer, ok := s.peers[dialog.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown dialog %d", dialog.ID)
	}

	resp, err := s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, wrapTelegramError(err)
	}

	var (
		messages []tg.MessageClass
		users    []tg.UserClass
	)
	switch r := resp.(type) {
	case *tg.MessagesMessages:
		messages, users = r.Messages, r.Users
	case *tg.MessagesMessagesSlice:
		messages, users = r.Messages, r.Users
	case *tg.MessagesChannelMessages:
		messages, users = r.Messages, r.Users
	case *tg.MessagesMessagesNotModified:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected history response %T", resp)
	}

	s.cacheUsers(users)

	result := make([]domain.Message, 0, len(messages))
	for _, mc := range messages {
		msg, ok := s.convertMessage(dialog, mc)
		if ok {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (s *telegramSource) convertMessage(dialog domain.Dialog, mc tg.MessageClass) (domain.Message, bool) {
	var (
		id      int
		date    int
		fromID  tg.PeerClass
		hasFrom bool
		out     bool
		peerID  tg.PeerClass
		text    string
		media   tg.MessageMediaClass
	)
	switch m := mc.(type) {
	case *tg.Message:
		id, date, peerID, text, out = m.ID, m.Date, m.PeerID, m.Message, m.Out
		fromID, hasFrom = m.GetFromID()
		media, _ = m.GetMedia()
	case *tg.MessageService:
		id, date, peerID, out = m.ID, m.Date, m.PeerID, m.Out
		fromID, hasFrom = m.GetFromID()
	default:
		return domain.Message{}, false
	}

	msg := domain.Message{
		ID:          id,
		ChatID:      dialog.ID,
		Date:        time.Unix(int64(date), 0).UTC(),
		Text:        text,
		Attachments: convertMedia(media),
	}

	// private chats omit from_id on both sides: incoming is the peer, outgoing is the account
	if !hasFrom {
		fromID = peerID
		if out {
			fromID = s.selfPeer()
		}
	}
	if u, ok := fromID.(*tg.PeerUser); ok {
		msg.SenderID = u.UserID
		if cached, found := s.senders.Get(senderKey(u.UserID)); found {
			sender := cached.(domain.Sender)
			msg.Sender = &sender
		}
	} else if fromID != nil {
		msg.SenderID = markedPeerID(fromID)
	}
	return msg, true
}

func (s *telegramSource) selfPeer() tg.PeerClass {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selfID == 0 {
		return nil
	}
	return &tg.PeerUser{UserID: s.selfID}
}

func (s *telegramSource) cacheUsers(users []tg.UserClass) {
	for _, uc := range users {
		u, ok := uc.(*tg.User)
		if !ok {
			continue
		}
		if u.Self {
			s.mu.Lock()
			s.selfID = u.ID
			s.mu.Unlock()
		}
		s.senders.SetDefault(senderKey(u.ID), domain.Sender{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
		})
	}
}

func senderKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func convertMedia(media tg.MessageMediaClass) domain.Attachments {
	var a domain.Attachments
	if media == nil {
		return a
	}
	a.Media = true

	switch m := media.(type) {
	case *tg.MessageMediaEmpty:
		a.EmptyMedia = true
	case *tg.MessageMediaDocument:
		if doc, ok := m.GetDocument(); ok {
			if d, ok := doc.(*tg.Document); ok {
				for _, attr := range d.Attributes {
					if audio, ok := attr.(*tg.DocumentAttributeAudio); ok && audio.Voice {
						a.Voice = true
					}
				}
			}
		}
	case *tg.MessageMediaPoll:
		a.Poll = true
	case *tg.MessageMediaContact:
		a.Contact = true
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		a.Location = true
	}
	return a
}

// markedPeerID maps a peer to its marked id: user id, -chat id, or -(1e12 + channel id)
func markedPeerID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -(channelIDOffset + p.ChannelID)
	}
	return 0
}

func topMessageDate(messages []tg.MessageClass, d *tg.Dialog) int {
	key := markedPeerID(d.Peer)
	for _, mc := range messages {
		switch m := mc.(type) {
		case *tg.Message:
			if m.ID == d.TopMessage && markedPeerID(m.PeerID) == key {
				return m.Date
			}
		case *tg.MessageService:
			if m.ID == d.TopMessage && markedPeerID(m.PeerID) == key {
				return m.Date
			}
		}
	}
	return 0
}

// wrapTelegramError maps flood waits into the transport-neutral rate-limit signal
func wrapTelegramError(err error) error {
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &domain.RateLimitError{Wait: d, Err: err}
	}
	return err
}

// entities indexes the chats and users of one response
type entities struct {
	users    map[int64]*tg.User
	chats    map[int64]*tg.Chat
	channels map[int64]*tg.Channel
}

func newEntities(chats []tg.ChatClass, users []tg.UserClass) *entities {
	e := &entities{
		users:    make(map[int64]*tg.User),
		chats:    make(map[int64]*tg.Chat),
		channels: make(map[int64]*tg.Channel),
	}
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			e.users[u.ID] = u
		}
	}
	for _, cc := range chats {
		switch c := cc.(type) {
		case *tg.Chat:
			e.chats[c.ID] = c
		case *tg.Channel:
			e.channels[c.ID] = c
		}
	}
	return e
}

func (e *entities) dialog(d *tg.Dialog) (domain.Dialog, tg.InputPeerClass, bool) {
	peer, ok := e.inputPeer(d.Peer)
	if !ok {
		return domain.Dialog{}, nil, false
	}
	dialog := domain.Dialog{
		ID:          markedPeerID(d.Peer),
		UnreadCount: d.UnreadCount,
	}
	switch p := d.Peer.(type) {
	case *tg.PeerUser:
		u := e.users[p.UserID]
		dialog.Name = userDisplayName(u)
	case *tg.PeerChat:
		dialog.IsGroup = true
		dialog.Name = e.chats[p.ChatID].Title
	case *tg.PeerChannel:
		dialog.IsGroup = true
		dialog.Name = e.channels[p.ChannelID].Title
	}
	return dialog, peer, true
}

func (e *entities) inputPeer(peer tg.PeerClass) (tg.InputPeerClass, bool) {
	switch p := peer.(type) {
	case *tg.PeerUser:
		u, ok := e.users[p.UserID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}, true
	case *tg.PeerChat:
		if _, ok := e.chats[p.ChatID]; !ok {
			return nil, false
		}
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		c, ok := e.channels[p.ChannelID]
		if !ok {
			return nil, false
		}
		return &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash}, true
	}
	return nil, false
}

func userDisplayName(u *tg.User) string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}
