// Package cqrs routes commands to their handlers and enforces project-level
// authorization before any handler runs.
package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lingx/api/internal/rbac"
)

// Command is a request to change or read project state. Scope returns the
// project the command operates on so the bus can resolve the actor's role.
type Command interface {
	Name() string
	Scope() string
}

// Actor identifies who is executing a command.
type Actor struct {
	UserID      string
	DisplayName string
}

// HandlerFunc executes one command kind. The result type is command-specific.
type HandlerFunc func(ctx context.Context, actor Actor, cmd Command) (any, error)

// RoleResolver looks up the actor's role within a project. An empty role
// means the actor is not a member.
type RoleResolver interface {
	GetMemberRole(ctx context.Context, userID, projectID string) (string, error)
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrForbidden      = errors.New("forbidden")
)

type registration struct {
	handler HandlerFunc
	action  rbac.Action
}

// Bus dispatches commands. Registration happens once at composition time;
// Execute is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	roles    RoleResolver
	handlers map[string]registration
}

func NewBus(roles RoleResolver) *Bus {
	return &Bus{
		roles:    roles,
		handlers: make(map[string]registration),
	}
}

// Register binds a command name to its handler and the minimum action the
// actor's role must allow. Re-registering a name is a programming error.
func (b *Bus) Register(name string, action rbac.Action, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[name]; exists {
		panic(fmt.Sprintf("cqrs: handler already registered for %q", name))
	}
	b.handlers[name] = registration{handler: handler, action: action}
}

// Execute authorizes and runs a command. The role check happens before the
// handler, so an unauthorized command has no side effects.
func (b *Bus) Execute(ctx context.Context, actor Actor, cmd Command) (any, error) {
	b.mu.RLock()
	reg, ok := b.handlers[cmd.Name()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name())
	}

	role, err := b.roles.GetMemberRole(ctx, actor.UserID, cmd.Scope())
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if !rbac.Can(rbac.Normalize(role), reg.action) {
		return nil, fmt.Errorf("%w: %s requires %s", ErrForbidden, cmd.Name(), reg.action)
	}

	return reg.handler(ctx, actor, cmd)
}
