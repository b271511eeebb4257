package users

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/rosterd/rosterd/internal/database"
)

// Service coordinates validation, storage and activity tracking for user
// registration and lookup.
type Service struct {
	db            *database.DB
	active        *ActiveTracker
	maxNameLength int
}

// NewService creates a user service backed by db. A non-positive
// maxNameLength falls back to DefaultMaxNameLength.
func NewService(db *database.DB, maxNameLength int) *Service {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}
	return &Service{
		db:            db,
		active:        NewActiveTracker(),
		maxNameLength: maxNameLength,
	}
}

// MaxNameLength returns the configured name length cap
func (s *Service) MaxNameLength() int {
	return s.maxNameLength
}

// Register validates raw, stores the cleaned name and marks the new user as
// active. Rejected input comes back as *ValidationError, duplicate names as
// database.ErrNameTaken; anything else is a store fault.
func (s *Service) Register(raw any) (*database.UserRecord, error) {
	name, err := ValidateName(raw, s.maxNameLength)
	if err != nil {
		return nil, err
	}

	id, err := s.db.CreateUser(name)
	if err != nil {
		if errors.Is(err, database.ErrNameTaken) {
			log.Warn().Str("name", logName(name)).Msg("Rejected duplicate user name")
		} else {
			log.Error().Err(err).Msg("Failed to create user")
		}
		return nil, err
	}

	s.active.Mark(id)
	log.Info().Int64("user_id", id).Str("name", logName(name)).Msg("User created successfully")

	return &database.UserRecord{ID: id, Name: name}, nil
}

// Lookup fetches a user by id and marks hits as active. Absent users are
// (nil, nil), never an error.
func (s *Service) Lookup(id int64) (*database.UserRecord, error) {
	user, err := s.db.GetUserByID(id)
	if err != nil {
		log.Error().Err(err).Int64("user_id", id).Msg("Failed to fetch user")
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	s.active.Mark(user.ID)
	return user, nil
}

// LookupByName fetches a user by exact name. Absent users are (nil, nil).
// Name lookups do not count as activity.
func (s *Service) LookupByName(name string) (*database.UserRecord, error) {
	user, err := s.db.GetUserByName(name)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch user by name")
		return nil, err
	}
	return user, nil
}

// Active returns the ids of recently active users, oldest first
func (s *Service) Active() []int64 {
	return s.active.Snapshot()
}

// logName caps names at 20 codepoints so hostile input cannot flood the log
func logName(name string) string {
	runes := []rune(name)
	if len(runes) <= 20 {
		return name
	}
	return string(runes[:20])
}
