package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"modguard/internal/persist"
)

// GuildConfig holds the per-guild moderation settings. A record is created
// lazily on first reference and never deleted.
type GuildConfig struct {
	GuildID          string `json:"-"`
	AntiLinksEnabled bool   `json:"antiLinks"`
	LogChannelID     string `json:"logChannel"`
}

type document struct {
	Servers map[string]GuildConfig `json:"servers"`
}

// Store is the persistent per-guild config store. Every mutation is flushed
// synchronously through the backend before the call returns; on flush
// failure the in-memory state rolls back to the pre-mutation snapshot.
type Store struct {
	mu      sync.Mutex
	backend persist.Backend
	servers map[string]GuildConfig
}

func New(backend persist.Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		servers: make(map[string]GuildConfig),
	}
	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load guild config: %w", err)
	}
	if len(data) > 0 {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse guild config: %w", err)
		}
		if doc.Servers != nil {
			s.servers = doc.Servers
		}
	}
	return s, nil
}

// Get returns the guild's config, creating and persisting defaults on first
// reference.
func (s *Store) Get(guildID string) (GuildConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg, ok := s.servers[guildID]; ok {
		cfg.GuildID = guildID
		return cfg, nil
	}

	cfg := GuildConfig{}
	s.servers[guildID] = cfg
	if err := s.flushLocked(); err != nil {
		delete(s.servers, guildID)
		return GuildConfig{}, err
	}
	cfg.GuildID = guildID
	return cfg, nil
}

// SetAntiLinks toggles the invite-link filter. The returned bool reports
// whether the value actually changed, so callers can answer "already
// enabled/disabled" without a separate read. A no-change call does not
// touch the backend.
func (s *Store) SetAntiLinks(guildID string, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.servers[guildID]
	if existed && prev.AntiLinksEnabled == enabled {
		return false, nil
	}
	if !existed && !enabled {
		// lazily created default is already "disabled"
		s.servers[guildID] = GuildConfig{}
		if err := s.flushLocked(); err != nil {
			delete(s.servers, guildID)
			return false, err
		}
		return false, nil
	}

	next := prev
	next.AntiLinksEnabled = enabled
	s.servers[guildID] = next
	if err := s.flushLocked(); err != nil {
		s.rollbackLocked(guildID, prev, existed)
		return false, err
	}
	return true, nil
}

// SetLogChannel unconditionally overwrites the guild's log channel.
func (s *Store) SetLogChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.servers[guildID]
	next := prev
	next.LogChannelID = channelID
	s.servers[guildID] = next
	if err := s.flushLocked(); err != nil {
		s.rollbackLocked(guildID, prev, existed)
		return err
	}
	return nil
}

func (s *Store) rollbackLocked(guildID string, prev GuildConfig, existed bool) {
	if existed {
		s.servers[guildID] = prev
	} else {
		delete(s.servers, guildID)
	}
}

func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(document{Servers: s.servers}, "", "    ")
	if err != nil {
		return fmt.Errorf("encode guild config: %w", err)
	}
	if err := s.backend.Flush(data); err != nil {
		return fmt.Errorf("flush guild config: %w", err)
	}
	return nil
}
