package repo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory keeps everything in process. It backs the server when no database
// is configured, and the handler tests.
type Memory struct {
	mu       sync.Mutex
	users    map[string]memUser
	clients  []string
	classes  []string
	reports  map[string]ReportEntry
	lastUser int
}

type memUser struct {
	id   int
	hash string
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]memUser), reports: make(map[string]ReportEntry)}
}

func (m *Memory) CreateUser(_ context.Context, login, _, password string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[login]; ok {
		return 0, errors.New("user already exists")
	}
	m.lastUser++
	m.users[login] = memUser{id: m.lastUser, hash: password}
	return m.lastUser, nil
}

func (m *Memory) GetByLogin(_ context.Context, login string) (int, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[login]
	return u.id, u.hash, nil
}

func (m *Memory) ListClients(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.clients), nil
}

func (m *Memory) AddClient(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = insertSorted(m.clients, name)
	return nil
}

func (m *Memory) ListConcreteClasses(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.classes), nil
}

func (m *Memory) AddConcreteClass(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes = insertSorted(m.classes, name)
	return nil
}

func (m *Memory) LogReport(_ context.Context, e ReportEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.Files = slices.Clone(e.Files)
	m.reports[e.ID] = e
	return nil
}

func (m *Memory) GetReport(_ context.Context, id string) (ReportEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.reports[id]
	if !ok {
		return ReportEntry{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func insertSorted(list []string, name string) []string {
	i, found := slices.BinarySearch(list, name)
	if found {
		return list
	}
	return slices.Insert(list, i, name)
}

var (
	_ Repository = (*Memory)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
