// Package api implements the taskboard REST handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BlackHan26/taskboard/notify"
	"github.com/BlackHan26/taskboard/task"
	"github.com/BlackHan26/taskboard/team"
	"github.com/BlackHan26/taskboard/todo"
)

type ctxKey int

const ctxKeyActor ctxKey = iota

// ContextWithActor returns ctx carrying the authenticated user ID.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, userID)
}

// ActorFrom returns the authenticated user ID from ctx, or "".
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyActor).(string)
	return id
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks   *task.Service
	Todos   *todo.Service
	Teams   team.Store
	Inbox   *notify.InMemoryBus
	Sweeper *task.Sweeper
	Logger  *slog.Logger
	Version string
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/teams", h.listTeams)
	mux.HandleFunc("POST /api/teams", h.createTeam)
	mux.HandleFunc("GET /api/teams/{id}", h.getTeam)
	mux.HandleFunc("GET /api/teams/{id}/members", h.listMembers)
	mux.HandleFunc("POST /api/teams/{id}/members", h.addMember)

	mux.HandleFunc("GET /api/teams/{id}/tasks", h.listTeamTasks)
	mux.HandleFunc("POST /api/teams/{id}/tasks", h.createTask)
	mux.HandleFunc("GET /api/teams/{id}/tasks/mine", h.listMyTeamTasks)
	mux.HandleFunc("GET /api/teams/{id}/tasks/{taskID}", h.getTask)
	mux.HandleFunc("PATCH /api/teams/{id}/tasks/{taskID}", h.updateTask)
	mux.HandleFunc("DELETE /api/teams/{id}/tasks/{taskID}", h.deleteTask)

	mux.HandleFunc("GET /api/tasks/mine", h.listMyTasks)

	mux.HandleFunc("GET /api/todos", h.listTodos)
	mux.HandleFunc("POST /api/todos", h.createTodo)
	mux.HandleFunc("PATCH /api/todos/{id}", h.updateTodo)
	mux.HandleFunc("DELETE /api/todos/{id}", h.deleteTodo)

	mux.HandleFunc("GET /api/notifications", h.listNotifications)

	mux.HandleFunc("POST /api/admin/sweep", h.runSweep)

	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps service sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound),
		errors.Is(err, task.ErrTeamNotFound),
		errors.Is(err, task.ErrUserNotFound),
		errors.Is(err, team.ErrTeamNotFound),
		errors.Is(err, team.ErrUserNotFound),
		errors.Is(err, team.ErrMemberNotFound),
		errors.Is(err, todo.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrForbidden),
		errors.Is(err, task.ErrNotMember),
		errors.Is(err, todo.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, task.ErrTeamMismatch),
		errors.Is(err, task.ErrVersionConflict),
		errors.Is(err, task.ErrSweepRunning),
		errors.Is(err, team.ErrAlreadyMember),
		errors.Is(err, team.ErrTeamFull):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, task.ErrInvalidDates):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Team handlers ---

func (h *Handlers) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Teams.TeamsOf(ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if teams == nil {
		teams = []*team.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handlers) createTeam(w http.ResponseWriter, r *http.Request) {
	var t team.Team
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if t.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	t.ManagerID = ActorFrom(r.Context())
	if _, err := h.Teams.CreateTeam(&t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.Teams.GetTeam(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Teams.MembersOf(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if members == nil {
		members = []*team.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	var m team.Member
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	m.TeamID = r.PathValue("id")
	if _, err := h.Teams.AddMember(&m); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// --- Task handlers ---

func (h *Handlers) listTeamTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListTeam(r.Context(), ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var p task.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Tasks.Create(r.Context(), ActorFrom(r.Context()), r.PathValue("id"), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), ActorFrom(r.Context()), r.PathValue("id"), r.PathValue("taskID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var p task.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Tasks.Update(r.Context(), ActorFrom(r.Context()), r.PathValue("id"), r.PathValue("taskID"), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), ActorFrom(r.Context()), r.PathValue("id"), r.PathValue("taskID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) listMyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListMine(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) listMyTeamTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListMineInTeam(r.Context(), ActorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// --- Todo handlers ---

func (h *Handlers) listTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := h.Todos.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if todos == nil {
		todos = []*todo.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *Handlers) createTodo(w http.ResponseWriter, r *http.Request) {
	var p todo.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	td, err := h.Todos.Create(r.Context(), ActorFrom(r.Context()), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, td)
}

func (h *Handlers) updateTodo(w http.ResponseWriter, r *http.Request) {
	var p todo.UpdateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	td, err := h.Todos.Update(r.Context(), ActorFrom(r.Context()), r.PathValue("id"), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, td)
}

func (h *Handlers) deleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := h.Todos.Delete(r.Context(), ActorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Notification handlers ---

func (h *Handlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	msgs, err := h.Inbox.Inbox(ActorFrom(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []*notify.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- Admin handlers ---

// runSweep triggers a manual reconciliation pass over all tasks.
func (h *Handlers) runSweep(w http.ResponseWriter, r *http.Request) {
	transitions, err := h.Sweeper.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, task.ErrSweepRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		// Partial failure: some tasks reconciled, some did not.
		h.Logger.Error("manual sweep finished with errors", slog.Any("err", err))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": len(transitions),
	})
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
	})
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
