// Package emulator serves an in-memory, path-style Blob Storage endpoint
// that verifies Shared Key and SAS requests the way the service does.
package emulator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prn-tf/alexander-azblob/internal/auth"
	"github.com/prn-tf/alexander-azblob/internal/domain"
	"github.com/prn-tf/alexander-azblob/internal/pkg/crypto"
)

// Store errors.
var (
	ErrContainerNotFound      = errors.New("container not found")
	ErrContainerAlreadyExists = errors.New("container already exists")
	ErrBlobNotFound           = errors.New("blob not found")
)

// MaxPageSize caps maxresults on list requests.
const MaxPageSize = 5000

// Blob is a stored blob.
type Blob struct {
	Name         string
	Data         []byte
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	ContentMD5   string
}

type containerState struct {
	access domain.AccessLevel
	blobs  map[string]*Blob
}

type accountState struct {
	creds      auth.Credentials
	containers map[string]*containerState
}

// Store keeps accounts, containers and blobs in memory. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*accountState
	now      func() time.Time
}

// NewStore creates an empty store. now stamps Last-Modified; nil means time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		accounts: make(map[string]*accountState),
		now:      now,
	}
}

// AddAccount registers an account with its base64 key.
func (s *Store) AddAccount(name, key string) error {
	creds, err := auth.NewCredentials(name, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[name]; ok {
		existing.creds = creds
		return nil
	}
	s.accounts[name] = &accountState{
		creds:      creds,
		containers: make(map[string]*containerState),
	}
	return nil
}

// Credentials implements auth.AccountStore.
func (s *Store) Credentials(_ context.Context, account string) (auth.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[account]
	if !ok {
		return auth.Credentials{}, auth.ErrUnknownAccount
	}
	return acct.creds, nil
}

// ContainerAccess implements auth.ContainerACLChecker.
func (s *Store) ContainerAccess(_ context.Context, account, container string) (domain.AccessLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.container(account, container)
	if err != nil {
		return "", err
	}
	return c.access, nil
}

// SetContainerAccess changes a container's anonymous access level.
func (s *Store) SetContainerAccess(account, container string, level domain.AccessLevel) error {
	if !level.Valid() {
		return domain.ErrInvalidAccessLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.container(account, container)
	if err != nil {
		return err
	}
	c.access = level
	return nil
}

// CreateContainer adds a container with the given access level.
func (s *Store) CreateContainer(account, container string, level domain.AccessLevel) error {
	if !level.Valid() {
		return domain.ErrInvalidAccessLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return auth.ErrUnknownAccount
	}
	if _, ok := acct.containers[container]; ok {
		return ErrContainerAlreadyExists
	}
	acct.containers[container] = &containerState{
		access: level,
		blobs:  make(map[string]*Blob),
	}
	return nil
}

// PutBlob stores a copy of data, replacing any existing blob.
func (s *Store) PutBlob(account, container, name string, data []byte, contentType string) (Blob, error) {
	if contentType == "" {
		contentType = domain.DefaultContentType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.container(account, container)
	if err != nil {
		return Blob{}, err
	}

	b := &Blob{
		Name:         name,
		Data:         append([]byte(nil), data...),
		Size:         int64(len(data)),
		ContentType:  contentType,
		LastModified: s.now().UTC().Truncate(time.Second),
		ETag:         crypto.ETag(data),
		ContentMD5:   crypto.ContentMD5(data),
	}
	c.blobs[name] = b
	return *b, nil
}

// GetBlob returns a copy of a stored blob.
func (s *Store) GetBlob(account, container, name string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.container(account, container)
	if err != nil {
		return Blob{}, err
	}
	b, ok := c.blobs[name]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}

	out := *b
	out.Data = append([]byte(nil), b.Data...)
	return out, nil
}

// DeleteBlob removes a blob.
func (s *Store) DeleteBlob(account, container, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.container(account, container)
	if err != nil {
		return err
	}
	if _, ok := c.blobs[name]; !ok {
		return ErrBlobNotFound
	}
	delete(c.blobs, name)
	return nil
}

// CopyBlob copies a blob within one account.
func (s *Store) CopyBlob(account, srcContainer, srcName, dstContainer, dstName string) (Blob, error) {
	src, err := s.GetBlob(account, srcContainer, srcName)
	if err != nil {
		return Blob{}, err
	}
	return s.PutBlob(account, dstContainer, dstName, src.Data, src.ContentType)
}

// ListBlobs returns up to maxResults blobs whose names start with prefix, in
// name order, starting at marker. next is the name the following page starts
// at, or empty on the last page.
func (s *Store) ListBlobs(account, container, prefix, marker string, maxResults int) (blobs []Blob, next string, err error) {
	if maxResults <= 0 || maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.container(account, container)
	if err != nil {
		return nil, "", err
	}

	names := make([]string, 0, len(c.blobs))
	for name := range c.blobs {
		if strings.HasPrefix(name, prefix) && name >= marker {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) > maxResults {
		next = names[maxResults]
		names = names[:maxResults]
	}

	blobs = make([]Blob, 0, len(names))
	for _, name := range names {
		b := *c.blobs[name]
		b.Data = nil
		blobs = append(blobs, b)
	}
	return blobs, next, nil
}

// container looks up a container. Callers hold s.mu.
func (s *Store) container(account, container string) (*containerState, error) {
	acct, ok := s.accounts[account]
	if !ok {
		return nil, ErrContainerNotFound
	}
	c, ok := acct.containers[container]
	if !ok {
		return nil, ErrContainerNotFound
	}
	return c, nil
}
