// Package erptest runs an in-memory ERP that speaks the JSON-RPC object
// protocol, for tests of code built on package erp.
package erptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/modaboutique/backoffice/internal/erp"
)

// MethodFunc implements a model method. ids holds the record ids passed as
// the first positional argument, when there is one.
type MethodFunc func(st *Store, ids []int64, args []any, kwargs map[string]any) (any, error)

// Server is a fake ERP endpoint.
type Server struct {
	*httptest.Server

	Database string
	Username string
	Password string
	UID      int64

	mu       sync.Mutex
	store    *Store
	methods  map[string]MethodFunc
	failures map[string]error
	calls    map[string]int
	logins   int
	expired  int
}

// New starts a fake ERP with credentials admin/admin on database "boutique".
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Database: "boutique",
		Username: "admin",
		Password: "admin",
		UID:      2,
		store:    newStore(),
		methods:  map[string]MethodFunc{},
		failures: map[string]error{},
		calls:    map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Config returns client settings pointing at the fake.
func (s *Server) Config() erp.Config {
	return erp.Config{URL: s.URL, Database: s.Database, Username: s.Username, Password: s.Password}
}

// Client builds a client connected to the fake.
func (s *Server) Client(t testing.TB, opts ...erp.Option) *erp.Client {
	t.Helper()
	c, err := erp.New(s.Config(), opts...)
	if err != nil {
		t.Fatalf("erp client: %v", err)
	}
	return c
}

// ManyToOne declares a relational field rendered as [id, name].
func (s *Server) ManyToOne(model, field, comodel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.many2one[model] == nil {
		s.store.many2one[model] = map[string]string{}
	}
	s.store.many2one[model][field] = comodel
}

// ManyToMany declares a list-of-ids field whose name lacks the _ids suffix.
func (s *Server) ManyToMany(model, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.many2many[model] == nil {
		s.store.many2many[model] = map[string]bool{}
	}
	s.store.many2many[model][field] = true
}

// OneToMany declares an inverse relation accepting x2many commands.
func (s *Server) OneToMany(model, field, comodel, inverseField string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.one2many[model] == nil {
		s.store.one2many[model] = map[string]inverse{}
	}
	s.store.one2many[model][field] = inverse{model: comodel, field: inverseField}
}

// Default sets values applied to every new record of model.
func (s *Server) Default(model string, values Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.defaults[model] = values
}

// Compute registers a hook run after a record is created, written or deleted.
func (s *Server) Compute(model string, fn func(st *Store, rec Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.computes[model] = append(s.store.computes[model], fn)
}

// Handle implements a non-CRUD model method.
func (s *Server) Handle(model, method string, fn MethodFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[model+"."+method] = fn
}

// Fail makes every call of model.method return a UserError. An empty
// message clears the failure.
func (s *Server) Fail(model, method, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model + "." + method
	if message == "" {
		delete(s.failures, key)
		return
	}
	s.failures[key] = UserError(message)
}

// FailWith makes every call of model.method return err.
func (s *Server) FailWith(model, method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[model+"."+method] = err
}

// ExpireSession makes the next object call fail with AccessDenied.
func (s *Server) ExpireSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired++
}

// Seed inserts a record and returns its id.
func (s *Server) Seed(model string, values Record) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Insert(model, values)
}

// Update writes values onto a record.
func (s *Server) Update(model string, id int64, values Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.store.Update(model, id, values)
}

// Record returns a copy of a stored record, or nil.
func (s *Server) Record(model string, id int64) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.store.Find(model, id)
	if !ok {
		return nil
	}
	return asRecord(rec)
}

// Records returns copies of records matching the domain, ascending by id.
func (s *Server) Records(model string, domain ...[]any) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter := make([]any, 0, len(domain))
	for _, term := range domain {
		filter = append(filter, term)
	}
	var out []Record
	for _, id := range s.store.Select(model, filter) {
		rec, _ := s.store.Find(model, id)
		out = append(out, asRecord(rec))
	}
	return out
}

// Calls reports how many times model.method was invoked.
func (s *Server) Calls(model, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model+"."+method]
}

// Logins reports how many authenticate calls were served.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// UserError builds the remote error raised by business rule violations.
func UserError(message string) error {
	return &erp.RemoteError{
		Code:    200,
		Message: "Odoo Server Error",
		Data:    erp.RemoteErrorData{Name: "odoo.exceptions.UserError", Message: message},
	}
}

func accessDenied() error {
	return &erp.RemoteError{
		Code:    200,
		Message: "Odoo Server Error",
		Data:    erp.RemoteErrorData{Name: "odoo.exceptions.AccessDenied", Message: "Access Denied"},
	}
}

func missing(model string, ids []int64) error {
	return &erp.RemoteError{
		Code:    200,
		Message: "Odoo Server Error",
		Data: erp.RemoteErrorData{
			Name:    "odoo.exceptions.MissingError",
			Message: fmt.Sprintf("Record does not exist or has been deleted. (Record: %s(%v))", model, ids),
		},
	}
}

type request struct {
	ID     any `json:"id"`
	Params struct {
		Service string `json:"service"`
		Method  string `json:"method"`
		Args    []any  `json:"args"`
	} `json:"params"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/jsonrpc" {
		http.NotFound(w, r)
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	result, err := s.dispatch(req.Params.Service, req.Params.Method, req.Params.Args)
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if err != nil {
		remote, ok := err.(*erp.RemoteError)
		if !ok {
			remote = UserError(err.Error()).(*erp.RemoteError)
		}
		resp["error"] = remote
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) dispatch(service, method string, args []any) (any, error) {
	switch {
	case service == "common" && method == "authenticate":
		s.logins++
		if len(args) >= 3 && args[0] == s.Database && args[1] == s.Username && args[2] == s.Password {
			return s.UID, nil
		}
		return false, nil
	case service == "object" && method == "execute_kw":
		if len(args) < 5 {
			return nil, UserError("execute_kw: missing arguments")
		}
		if args[0] != s.Database || toInt(args[1]) != s.UID || args[2] != s.Password {
			return nil, accessDenied()
		}
		if s.expired > 0 {
			s.expired--
			return nil, accessDenied()
		}
		model, _ := args[3].(string)
		name, _ := args[4].(string)
		var posArgs []any
		if len(args) > 5 {
			posArgs = asList(args[5])
		}
		kwargs := map[string]any{}
		if len(args) > 6 {
			if kw, ok := args[6].(map[string]any); ok {
				kwargs = kw
			}
		}
		s.calls[model+"."+name]++
		if err, ok := s.failures[model+"."+name]; ok {
			return nil, err
		}
		return s.execute(model, name, posArgs, kwargs)
	}
	return nil, UserError(fmt.Sprintf("unknown service %s.%s", service, method))
}

func (s *Server) execute(model, method string, args []any, kwargs map[string]any) (any, error) {
	st := s.store
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	switch method {
	case "search_read":
		domain := asList(arg(0))
		if d, ok := kwargs["domain"]; ok {
			domain = asList(d)
		}
		ids := st.Select(model, domain)
		st.sorted(model, ids, stringArg(kwargs["order"]))
		ids = window(ids, int(toInt(kwargs["offset"])), int(toInt(kwargs["limit"])))
		fields := stringList(kwargs["fields"])
		out := make([]Record, 0, len(ids))
		for _, id := range ids {
			rec, _ := st.Find(model, id)
			out = append(out, st.render(model, rec, fields))
		}
		return out, nil
	case "read":
		ids := toIDs(arg(0))
		fields := stringList(kwargs["fields"])
		if fields == nil {
			fields = stringList(arg(1))
		}
		out := make([]Record, 0, len(ids))
		for _, id := range ids {
			rec, ok := st.Find(model, id)
			if !ok {
				return nil, missing(model, []int64{id})
			}
			out = append(out, st.render(model, rec, fields))
		}
		return out, nil
	case "search":
		ids := st.Select(model, asList(arg(0)))
		st.sorted(model, ids, stringArg(kwargs["order"]))
		return window(ids, int(toInt(kwargs["offset"])), int(toInt(kwargs["limit"]))), nil
	case "search_count":
		return len(st.Select(model, asList(arg(0)))), nil
	case "create":
		if list, ok := arg(0).([]any); ok {
			ids := make([]int64, 0, len(list))
			for _, vals := range list {
				ids = append(ids, st.Insert(model, asRecord(vals)))
			}
			return ids, nil
		}
		return st.Insert(model, asRecord(arg(0))), nil
	case "write":
		ids := toIDs(arg(0))
		for _, id := range ids {
			if _, ok := st.Find(model, id); !ok {
				return nil, missing(model, ids)
			}
		}
		vals := asRecord(arg(1))
		for _, id := range ids {
			if err := st.Update(model, id, vals); err != nil {
				return nil, err
			}
		}
		return true, nil
	case "unlink":
		ids := toIDs(arg(0))
		for _, id := range ids {
			if !st.Delete(model, id) {
				return nil, missing(model, ids)
			}
		}
		return true, nil
	}
	fn, ok := s.methods[model+"."+method]
	if !ok {
		return nil, &erp.RemoteError{
			Code:    200,
			Message: "Odoo Server Error",
			Data: erp.RemoteErrorData{
				Name:    "builtins.AttributeError",
				Message: fmt.Sprintf("The method '%s' does not exist on the model '%s'", method, model),
			},
		}
	}
	var ids []int64
	if list, ok := arg(0).([]any); ok {
		ids = toIDs(list)
	}
	return fn(st, ids, args, kwargs)
}

func window(ids []int64, offset, limit int) []int64 {
	if offset >= len(ids) {
		return []int64{}
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func stringArg(v any) string {
	s, _ := v.(string)
	return s
}

func stringList(v any) []string {
	list := asList(v)
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
