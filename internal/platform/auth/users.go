package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ehr/reportlink/internal/platform/jsonfile"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserExists         = errors.New("auth: username already exists")
	ErrInvalidUser        = errors.New("auth: invalid user")
)

// User is one entry of users.json.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Role         Role   `json:"role"`
}

// LoginEvent is one entry of session.json.
type LoginEvent struct {
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	LoggedInAt string `json:"loggedinAt"`
}

const loginTimeLayout = "2006-01-02 15:04:05"

// UserStore keeps users and the login log in JSON files.
type UserStore struct {
	mu        sync.Mutex
	usersPath string
	logPath   string
	cost      int
	now       func() time.Time
}

func NewUserStore(usersPath, logPath string) *UserStore {
	return &UserStore{
		usersPath: usersPath,
		logPath:   logPath,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// CreateUser adds a doctor or nurse. Only admins may create users.
func (s *UserStore) CreateUser(ctx context.Context, sess Session, username, password string, role Role) error {
	if err := sess.Require(Role.CanCreateUsers, "admins can create users"); err != nil {
		return err
	}
	if role != RoleDoctor && role != RoleNurse {
		return fmt.Errorf("%w: role must be 'doctor' or 'nurse'", ErrInvalidUser)
	}
	return s.add(username, password, role)
}

// EnsureAdmin creates the admin account when no admin exists yet. It reports
// whether an account was created.
func (s *UserStore) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	users, err := s.load()
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if u.Role == RoleAdmin {
			return false, nil
		}
	}
	if err := s.add(username, password, RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserStore) add(username, password string, role Role) error {
	if n := len(username); n < 4 || n > 50 {
		return fmt.Errorf("%w: username must be between 4 and 50 characters", ErrInvalidUser)
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", ErrInvalidUser)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == username {
			return ErrUserExists
		}
	}
	users = append(users, User{Username: username, PasswordHash: string(hash), Role: role})
	if err := jsonfile.Write(s.usersPath, users); err != nil {
		return fmt.Errorf("auth: save users: %w", err)
	}
	return nil
}

// Authenticate checks the password and returns a new session. Successful
// logins are appended to the login log.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (Session, error) {
	users, err := s.load()
	if err != nil {
		return Session{}, err
	}
	for _, u := range users {
		if u.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
			break
		}
		sess := Session{Username: u.Username, Role: u.Role, LoggedInAt: s.now()}
		if err := s.logLogin(sess); err != nil {
			return Session{}, err
		}
		return sess, nil
	}
	return Session{}, ErrInvalidCredentials
}

// Lookup returns the stored user, used to re-check roles behind a token.
func (s *UserStore) Lookup(ctx context.Context, username string) (*User, error) {
	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, ErrInvalidCredentials
}

// Logins returns the login log in the order written.
func (s *UserStore) Logins(ctx context.Context) ([]LoginEvent, error) {
	var events []LoginEvent
	if err := jsonfile.Read(s.logPath, &events); err != nil {
		return nil, fmt.Errorf("auth: read login log: %w", err)
	}
	return events, nil
}

func (s *UserStore) load() ([]User, error) {
	var users []User
	if err := jsonfile.Read(s.usersPath, &users); err != nil {
		return nil, fmt.Errorf("auth: read users: %w", err)
	}
	return users, nil
}

func (s *UserStore) logLogin(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.Logins(context.Background())
	if err != nil {
		return err
	}
	events = append(events, LoginEvent{
		Username:   sess.Username,
		Role:       sess.Role,
		LoggedInAt: sess.LoggedInAt.Format(loginTimeLayout),
	})
	if err := jsonfile.Write(s.logPath, events); err != nil {
		return fmt.Errorf("auth: write login log: %w", err)
	}
	return nil
}
