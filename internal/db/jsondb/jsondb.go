// Package jsondb is a storage backend that keeps users and contents in
// memory and persists them to a JSON file on Close.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/contentapi/internal/models"
)

type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

// CacheStruct is the on-disk document. Contents are kept in insertion order.
type CacheStruct struct {
	Users    map[string]*UserRecord `json:"users"`
	Contents []*ContentRecord       `json:"contents"`
}

// UserRecord is the persisted form of models.User; unlike the model it
// serializes the password hash.
type UserRecord struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
	CreatedAt      int64  `json:"created_at"`
}

type ContentRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Summary   *string           `json:"summary"`
	Sentiment *models.Sentiment `json:"sentiment"`
	OwnerID   string            `json:"owner_id"`
	CreatedAt int64             `json:"created_at"`
}

// NewCache returns an empty document.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:    map[string]*UserRecord{},
		Contents: []*ContentRecord{},
	}
}

func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `writeToJSONFile()` calling: %w", err)
		}
	}

	if db.Cache.Users == nil {
		db.Cache.Users = map[string]*UserRecord{}
	}
	if db.Cache.Contents == nil {
		db.Cache.Contents = []*ContentRecord{}
	}

	return db, nil
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	if _, err = file.Write(jsonData); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close writes the current state to the file.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.findUserByEmail(usr.Email) != nil {
		return models.ErrDuplicateEmail
	}

	db.Cache.Users[usr.ID] = &UserRecord{
		ID:             usr.ID,
		Email:          usr.Email,
		HashedPassword: usr.HashedPassword,
		CreatedAt:      usr.CreatedAt.UnixNano(),
	}

	return nil
}

func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rec := db.findUserByEmail(email)
	if rec == nil {
		return nil, false, nil
	}

	return rec.toModel(), true, nil
}

func (db *JSONDB) CountUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

func (db *JSONDB) CreateContent(ctx context.Context, content *models.Content) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Contents = append(db.Cache.Contents, newContentRecord(content))

	return nil
}

func (db *JSONDB) UpdateContentAnalysis(
	ctx context.Context,
	id string,
	summary string,
	sentiment models.Sentiment,
) (*models.Content, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, ok := funk.Find(db.Cache.Contents, func(c *ContentRecord) bool {
		return c.ID == id
	}).(*ContentRecord)
	if !ok {
		return nil, models.ErrNotFound
	}
	if rec.Summary != nil || rec.Sentiment != nil {
		return nil, models.ErrAlreadyAnalyzed
	}

	rec.Summary = &summary
	rec.Sentiment = &sentiment

	return rec.toModel(), nil
}

func (db *JSONDB) ListContentsByOwner(ctx context.Context, ownerID string) ([]*models.Content, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	owned := funk.Filter(db.Cache.Contents, func(c *ContentRecord) bool {
		return c.OwnerID == ownerID
	}).([]*ContentRecord)

	result := make([]*models.Content, 0, len(owned))
	for i := len(owned) - 1; i >= 0; i-- {
		result = append(result, owned[i].toModel())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (db *JSONDB) GetContentForOwner(ctx context.Context, id, ownerID string) (*models.Content, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	idx := db.indexOwned(id, ownerID)
	if idx < 0 {
		return nil, false, nil
	}

	return db.Cache.Contents[idx].toModel(), true, nil
}

func (db *JSONDB) DeleteContentForOwner(ctx context.Context, id, ownerID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	idx := db.indexOwned(id, ownerID)
	if idx < 0 {
		return false, nil
	}

	db.Cache.Contents = append(db.Cache.Contents[:idx], db.Cache.Contents[idx+1:]...)

	return true, nil
}

func (db *JSONDB) ListUnanalyzedContents(
	ctx context.Context,
	after models.ContentCursor,
	limit int,
) ([]*models.Content, error) {
	db.mu.RLock()
	pending := funk.Filter(db.Cache.Contents, func(c *ContentRecord) bool {
		return (c.Summary == nil || c.Sentiment == nil) && cursorBefore(after, c.cursor())
	}).([]*ContentRecord)

	result := make([]*models.Content, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.toModel())
	}
	db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return cursorBefore(models.CursorOf(result[i]), models.CursorOf(result[j]))
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// cursorBefore orders positions by created_at, then id.
func cursorBefore(a, b models.ContentCursor) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return a.ID < b.ID
}

func (db *JSONDB) CountContents(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Contents)), nil
}

func (db *JSONDB) findUserByEmail(email string) *UserRecord {
	for _, rec := range db.Cache.Users {
		if rec.Email == email {
			return rec
		}
	}

	return nil
}

func (db *JSONDB) indexOwned(id, ownerID string) int {
	for i, rec := range db.Cache.Contents {
		if rec.ID == id && rec.OwnerID == ownerID {
			return i
		}
	}

	return -1
}
