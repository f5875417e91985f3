package app

import (
	"sort"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// Roster is the id-indexed set of known remote participants. Values are
// copied in and out; the local participant is never stored.
type Roster struct {
	self domain.ParticipantID

	mu    sync.RWMutex
	users map[domain.ParticipantID]domain.User
}

func NewRoster(self domain.ParticipantID) *Roster {
	return &Roster{
		self:  self,
		users: make(map[domain.ParticipantID]domain.User),
	}
}

func (r *Roster) Self() domain.ParticipantID { return r.self }

// Upsert records id, renaming it when name is not empty.
func (r *Roster) Upsert(id domain.ParticipantID, name string) (domain.User, bool) {
	if id == r.self || id == "" {
		return domain.User{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		u = domain.NewUser(id, name)
		log.Info().Str("module", "app.roster").Str("id", string(id)).Str("username", u.DisplayName).Msg("user added")
	} else if name != "" {
		_ = u.SetUsername(name)
	}
	r.users[id] = u
	return u, true
}

func (r *Roster) Rename(id domain.ParticipantID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return false
	}
	if err := u.SetUsername(name); err != nil {
		log.Warn().Err(err).Str("module", "app.roster").Str("id", string(id)).Msg("rename rejected")
		return false
	}
	r.users[id] = u
	log.Info().Str("module", "app.roster").Str("id", string(id)).Str("username", u.DisplayName).Msg("user renamed")
	return true
}

func (r *Roster) Remove(id domain.ParticipantID) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if ok {
		delete(r.users, id)
		log.Info().Str("module", "app.roster").Str("id", string(id)).Msg("user removed")
	}
	return u, ok
}

// SetVoice marks id as present in ch, adding it when unknown.
func (r *Roster) SetVoice(id domain.ParticipantID, ch domain.ChannelName) bool {
	if id == r.self || id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		u = domain.NewUser(id, "")
	}
	u.InVoice = true
	u.VoiceChannel = ch
	r.users[id] = u
	return true
}

// ClearVoice returns the channel id was in, if any.
func (r *Roster) ClearVoice(id domain.ParticipantID) (domain.ChannelName, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.InVoice {
		return "", false
	}
	prev := u.VoiceChannel
	u.InVoice = false
	u.VoiceChannel = ""
	r.users[id] = u
	return prev, true
}

func (r *Roster) Get(id domain.ParticipantID) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// MembersOf lists users in voice channel ch, ordered by id.
func (r *Roster) MembersOf(ch domain.ChannelName) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if u.InVoice && u.VoiceChannel == ch {
			out = append(out, u)
		}
	}
	sortUsers(out)
	return out
}

func (r *Roster) Snapshot() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sortUsers(out)
	return out
}

// Reset forgets everyone, used when the relay connection is lost.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[domain.ParticipantID]domain.User)
}

func sortUsers(us []domain.User) {
	sort.Slice(us, func(i, j int) bool { return us[i].ID < us[j].ID })
}
