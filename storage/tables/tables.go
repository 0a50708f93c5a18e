// Package tables stores users and tasks in Azure Table Storage.
//
// Tasks are partitioned by owner and keyed by an inverted creation time, so
// a partition scan returns them newest first without a sort. Usernames are
// row keys, which makes the table itself reject duplicate registrations.
package tables

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"todo-app/domain"
)

const (
	usersPartition   = "users"
	byNamePrefix     = "name:"
	byIDPrefix       = "id:"
	edmInt64         = "Edm.Int64"
	listPageSize     = 100
	maxToggleRetries = 3
)

var json = sonic.ConfigStd

// Store is a domain.Store backed by two Azure tables.
type Store struct {
	svc        *aztables.ServiceClient
	userTable  *aztables.Client
	taskTable  *aztables.Client
	tableNames []string
}

// New creates a Store from an Azure Storage connection string.
func New(connStr, usersTable, tasksTable string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		svc:        svc,
		userTable:  svc.NewClient(usersTable),
		taskTable:  svc.NewClient(tasksTable),
		tableNames: []string{usersTable, tasksTable},
	}, nil
}

// Init creates the tables if they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	for _, name := range s.tableNames {
		if _, err := s.svc.NewClient(name).CreateTable(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return fmt.Errorf("create table %s: %w", name, err)
			}
		}
	}
	return nil
}

// Entity carries the table keys; aztables.Entity also carries Timestamp,
// which the service owns and must not be written back.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type userEntity struct {
	Entity
	UserID        string `json:"UserId"`
	Username      string `json:"Username"`
	PasswordHash  string `json:"PasswordHash"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

func (e userEntity) toDomain() domain.User {
	return domain.User{
		ID:           e.UserID,
		Username:     e.Username,
		PasswordHash: e.PasswordHash,
		CreatedAt:    time.Unix(0, e.CreatedAt).UTC(),
	}
}

// CreateUser writes a username row first; the table rejects a second row
// with the same key, which is the uniqueness guarantee. The id row is
// written afterwards and the username row is rolled back if that fails.
func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.ID = uuid.NewString()
	ent := userEntity{
		Entity:        Entity{PartitionKey: usersPartition, RowKey: byNamePrefix + u.Username},
		UserID:        u.ID,
		Username:      u.Username,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt.UnixNano(),
		CreatedAtType: edmInt64,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.User{}, err
	}
	if _, err := s.userTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.User{}, translate(err)
	}

	ent.RowKey = byIDPrefix + u.ID
	payload, err = json.Marshal(ent)
	if err == nil {
		_, err = s.userTable.AddEntity(ctx, payload, nil)
	}
	if err != nil {
		_, _ = s.userTable.DeleteEntity(ctx, usersPartition, byNamePrefix+u.Username, nil)
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.getUser(ctx, byNamePrefix+username)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (domain.User, error) {
	return s.getUser(ctx, byIDPrefix+id)
}

func (s *Store) getUser(ctx context.Context, rowKey string) (domain.User, error) {
	if !validKey(rowKey) {
		return domain.User{}, domain.ErrNotFound
	}
	resp, err := s.userTable.GetEntity(ctx, usersPartition, rowKey, nil)
	if err != nil {
		return domain.User{}, translate(err)
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.User{}, err
	}
	return ent.toDomain(), nil
}

type taskEntity struct {
	Entity
	Text          string `json:"Text"`
	Completed     bool   `json:"Completed"`
	CreatedAt     int64  `json:"CreatedAt,string"`
	CreatedAtType string `json:"CreatedAt@odata.type"`
}

type taskUpdate struct {
	Entity
	Completed bool `json:"Completed"`
}

func (e taskEntity) toDomain() domain.Task {
	return domain.Task{
		ID:        e.RowKey,
		Text:      e.Text,
		Completed: e.Completed,
		CreatedAt: time.Unix(0, e.CreatedAt).UTC(),
		Owner:     e.PartitionKey,
	}
}

// taskRowKey sorts lexically in reverse creation order. The random suffix
// separates tasks created in the same nanosecond.
func taskRowKey(createdAt time.Time) string {
	return fmt.Sprintf("%019d-%s", math.MaxInt64-createdAt.UnixNano(), uuid.NewString()[:8])
}

func (s *Store) ListTasks(ctx context.Context, owner string, skip, take int) ([]domain.Task, error) {
	filter := "PartitionKey eq " + quote(owner)
	top := int32(listPageSize)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	tasks := make([]domain.Task, 0, take)
	skipped := 0
	for pager.More() && len(tasks) < take {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translate(err)
		}
		for _, raw := range resp.Entities {
			if skipped < skip {
				skipped++
				continue
			}
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, ent.toDomain())
			if len(tasks) == take {
				break
			}
		}
	}
	return tasks, nil
}

func (s *Store) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	ent := taskEntity{
		Entity:        Entity{PartitionKey: t.Owner, RowKey: taskRowKey(t.CreatedAt)},
		Text:          t.Text,
		Completed:     t.Completed,
		CreatedAt:     t.CreatedAt.UnixNano(),
		CreatedAtType: edmInt64,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, translate(err)
	}
	return ent.toDomain(), nil
}

// ToggleTask reads the task and writes the flipped flag guarded by the read
// ETag, retrying when a concurrent writer got there first.
func (s *Store) ToggleTask(ctx context.Context, owner, id string) (domain.Task, error) {
	if !validKey(owner) || !validKey(id) {
		return domain.Task{}, domain.ErrNotFound
	}
	for attempt := 0; ; attempt++ {
		resp, err := s.taskTable.GetEntity(ctx, owner, id, nil)
		if err != nil {
			return domain.Task{}, translate(err)
		}
		var ent taskEntity
		if err := json.Unmarshal(resp.Value, &ent); err != nil {
			return domain.Task{}, err
		}
		ent.Completed = !ent.Completed
		payload, err := json.Marshal(taskUpdate{Entity: Entity{PartitionKey: owner, RowKey: id}, Completed: ent.Completed})
		if err != nil {
			return domain.Task{}, err
		}
		etag := resp.ETag
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge})
		if err == nil {
			return ent.toDomain(), nil
		}
		if !isPreconditionFailed(err) || attempt+1 >= maxToggleRetries {
			return domain.Task{}, translate(err)
		}
	}
}

func (s *Store) DeleteTask(ctx context.Context, owner, id string) error {
	if !validKey(owner) || !validKey(id) {
		return domain.ErrNotFound
	}
	et := azcore.ETagAny
	_, err := s.taskTable.DeleteEntity(ctx, owner, id, &aztables.DeleteEntityOptions{IfMatch: &et})
	return translate(err)
}

func (s *Store) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	_, err := pager.NextPage(ctx)
	return err
}

func (s *Store) Close(context.Context) error { return nil }

func translate(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return domain.ErrNotFound
		case http.StatusConflict:
			return domain.ErrConflict
		}
	}
	return err
}

func isPreconditionFailed(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusPreconditionFailed
}

func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// validKey rejects characters Azure does not allow in keys, so malformed
// ids become plain misses instead of request errors.
func validKey(k string) bool {
	return k != "" && !strings.ContainsAny(k, "/\\#?\t\n\r")
}
