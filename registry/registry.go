// Package registry holds, per connected tool server, the set of advertised
// tool schemas, and resolves tool names to the server that owns them.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/mcpclient"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "registry")

// ErrUnknownTool is returned when no connected server advertises the
// requested tool name.
var ErrUnknownTool = errors.New("unknown tool")

// ServerClient is the surface of a tool server the registry and router
// consume. *mcpclient.Client implements it; tests provide fakes.
type ServerClient interface {
	ID() string
	BaseURL() string
	ListTools(ctx context.Context) ([]mcpclient.ToolSchema, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (*mcpclient.CallResult, error)
}

// DuplicateFunc is invoked when a newly discovered server advertises a tool
// name that another connected server already advertises. identical reports
// whether the two schemas have the same content fingerprint.
type DuplicateFunc func(toolName, prevServerID, newServerID string, identical bool)

// ServerHandle is the registry's record of one connected tool server.
// Schemas are immutable once discovered; a re-discovery replaces the whole
// handle atomically.
type ServerHandle struct {
	client  ServerClient
	schemas []mcpclient.ToolSchema
	// compiled argument validators, keyed by tool name
	validators map[string]*jsonschema.Schema
	// fingerprints of schema payloads, keyed by tool name
	fingerprints map[string]uint64
	// monotonically increasing discovery sequence; higher wins resolution
	seq uint64
}

// ID returns the server identifier.
func (h *ServerHandle) ID() string {
	return h.client.ID()
}

// BaseURL returns the server's base address.
func (h *ServerHandle) BaseURL() string {
	return h.client.BaseURL()
}

// Schemas returns the server's advertised schemas in discovery order.
func (h *ServerHandle) Schemas() []mcpclient.ToolSchema {
	return h.schemas
}

// Client returns the underlying server client.
func (h *ServerHandle) Client() ServerClient {
	return h.client
}

// Resolved is the outcome of resolving a tool name: the owning server, the
// tool's schema and its compiled argument validator.
type Resolved struct {
	Server    ServerClient
	Schema    mcpclient.ToolSchema
	Validator *jsonschema.Schema
}

// Registry owns all server handles. (server_id, tool_name) pairs uniquely
// identify a callable tool even when two servers expose the same name.
type Registry struct {
	mu          sync.RWMutex
	servers     map[string]*ServerHandle
	nextSeq     uint64
	onDuplicate DuplicateFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithDuplicateWarning installs the warning hook for duplicate tool names.
func WithDuplicateWarning(fn DuplicateFunc) Option {
	return func(r *Registry) {
		r.onDuplicate = fn
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		servers: make(map[string]*ServerHandle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover queries the server's tool listing, compiles argument validators
// and replaces that server's schema set atomically. A transport failure or a
// malformed schema payload leaves the previous handle, if any, untouched and
// does not affect other servers.
func (r *Registry) Discover(ctx context.Context, client ServerClient) error {
	schemas, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	handle := &ServerHandle{
		client:       client,
		schemas:      schemas,
		validators:   make(map[string]*jsonschema.Schema, len(schemas)),
		fingerprints: make(map[string]uint64, len(schemas)),
	}
	for _, s := range schemas {
		if _, ok := handle.validators[s.Name]; ok {
			return errors.WithMessagef(mcpclient.ErrDiscovery,
				"server %s advertises tool %q more than once", client.ID(), s.Name)
		}
		v, err := compileValidator(s)
		if err != nil {
			return errors.WithMessagef(mcpclient.ErrDiscovery,
				"server %s: invalid input schema for tool %q: %v", client.ID(), s.Name, err)
		}
		handle.validators[s.Name] = v
		handle.fingerprints[s.Name] = xxhash.Sum64(compactJSON(s.InputSchema))
	}

	r.mu.Lock()
	r.nextSeq++
	handle.seq = r.nextSeq
	dups := r.findDuplicatesLocked(client.ID(), handle)
	r.servers[client.ID()] = handle
	r.mu.Unlock()

	for _, d := range dups {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "duplicate_tool",
			"tool", d.tool,
			"server", d.prev,
			"shadowed_by", client.ID(),
			"identical", d.identical,
		)
		if r.onDuplicate != nil {
			r.onDuplicate(d.tool, d.prev, client.ID(), d.identical)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "discovered",
		"server", client.ID(),
		"tools", len(schemas),
	)
	return nil
}

type duplicate struct {
	tool      string
	prev      string
	identical bool
}

func (r *Registry) findDuplicatesLocked(newID string, handle *ServerHandle) []duplicate {
	var dups []duplicate
	for _, s := range handle.schemas {
		for id, h := range r.servers {
			if id == newID {
				continue
			}
			if fp, ok := h.fingerprints[s.Name]; ok {
				dups = append(dups, duplicate{
					tool:      s.Name,
					prev:      id,
					identical: fp == handle.fingerprints[s.Name],
				})
			}
		}
	}
	return dups
}

// RemoveServer discards a server's handle. Unknown IDs are ignored.
func (r *Registry) RemoveServer(id string) {
	r.mu.Lock()
	delete(r.servers, id)
	r.mu.Unlock()
}

// Servers returns the connected server handles in discovery order.
func (r *Registry) Servers() []*ServerHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

func (r *Registry) orderedLocked() []*ServerHandle {
	handles := make([]*ServerHandle, 0, len(r.servers))
	for _, h := range r.servers {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].seq < handles[j].seq
	})
	return handles
}

// Resolve returns the owning server and schema for a tool name. When more
// than one server advertises the name, the most recently discovered one wins.
// An absent name fails with ErrUnknownTool.
func (r *Registry) Resolve(name string) (*Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner *ServerHandle
	for _, h := range r.servers {
		if _, ok := h.validators[name]; !ok {
			continue
		}
		if winner == nil || h.seq > winner.seq {
			winner = h
		}
	}
	if winner == nil {
		return nil, errors.WithMessagef(ErrUnknownTool, "%s", name)
	}

	for _, s := range winner.schemas {
		if s.Name == name {
			return &Resolved{
				Server:    winner.client,
				Schema:    s,
				Validator: winner.validators[name],
			}, nil
		}
	}
	// validators and schemas are built from the same listing
	return nil, errors.WithMessagef(ErrUnknownTool, "%s", name)
}

// ToolNames returns the names of all advertised tools, deduplicated, in
// discovery order.
func (r *Registry) ToolNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	seen := make(map[string]bool)
	for _, h := range r.orderedLocked() {
		for _, s := range h.schemas {
			if !seen[s.Name] {
				seen[s.Name] = true
				names = append(names, s.Name)
			}
		}
	}
	return names
}

// AllSchemas returns the flattened, deduplicated list of schemas across all
// servers, in discovery order, formatted for the model gateway. For a
// duplicated name the winning (most recently discovered) schema is used, at
// the name's first position.
func (r *Registry) AllSchemas() []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	winners := make(map[string]*ServerHandle)
	for _, h := range r.servers {
		for _, s := range h.schemas {
			if prev, ok := winners[s.Name]; !ok || h.seq > prev.seq {
				winners[s.Name] = h
			}
		}
	}

	var tools []llms.Tool
	emitted := make(map[string]bool)
	for _, h := range r.orderedLocked() {
		for _, s := range h.schemas {
			if emitted[s.Name] {
				continue
			}
			emitted[s.Name] = true

			schema := s
			if w := winners[s.Name]; w != h {
				for _, ws := range w.schemas {
					if ws.Name == s.Name {
						schema = ws
						break
					}
				}
			}

			var params any
			if err := json.Unmarshal(schema.InputSchema, &params); err != nil {
				// validated at discovery time
				continue
			}
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        schema.Name,
					Description: schema.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools
}

func compileValidator(s mcpclient.ToolSchema) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(s.InputSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := "mcphost:///" + s.Name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
