package handlers

import (
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/http/respond"
	"github.com/hongminglow/dunes-blog/internal/models/dto"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Atlantic Dunes · Admin sign in</title></head>
<body>
<main>
  <h1>Admin sign in</h1>
  <form id="login">
    <label>Username <input name="username" autocomplete="username" required></label>
    <label>Password <input name="password" type="password" autocomplete="current-password" required></label>
    <button type="submit">Sign in</button>
    <p id="error" role="alert" hidden></p>
  </form>
</main>
<script>
document.getElementById("login").addEventListener("submit", async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const res = await fetch("/api/auth/login", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({username: form.get("username"), password: form.get("password")}),
  });
  if (res.ok) { window.location.assign({{.Next}}); return; }
  const body = await res.json().catch(() => ({}));
  const el = document.getElementById("error");
  el.textContent = body.error || "Sign in failed";
  el.hidden = false;
});
</script>
</body>
</html>
`))

var dashboardPage = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Atlantic Dunes · Admin</title></head>
<body>
<main>
  <h1>Admin</h1>
  <p>Signed in as <strong>{{.Username}}</strong> ({{.Role}}).</p>
  <button id="logout">Sign out</button>
</main>
<script>
document.getElementById("logout").addEventListener("click", async () => {
  await fetch("/api/auth/logout", {method: "POST"});
  window.location.assign("/admin/login");
});
</script>
</body>
</html>
`))

// AdminHandler serves the admin pages and admin API. Access control happens in
// middleware.RequireAdmin before these handlers run; they only read the
// session it placed in the request context.
type AdminHandler struct {
	gate   *auth.Gate
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(gate *auth.Gate, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{gate: gate, logger: logger, now: time.Now}
}

// Register attaches admin routes to the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/login", h.handleLoginPage)
	mux.HandleFunc("/admin", h.handleDashboardPage)
	mux.HandleFunc("/admin/", h.handleDashboardPage)
	mux.HandleFunc("/api/admin/dashboard", h.handleDashboard)
}

func (h *AdminHandler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if h.gate.CurrentSession(r.Context(), h.gate.Accessor(w, r)).IsAdmin() {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	h.render(w, loginPage, struct{ Next string }{Next: "/admin"})
}

func (h *AdminHandler) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/admin" && r.URL.Path != "/admin/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok || !session.IsAdmin() {
		http.Redirect(w, r, "/admin/login", http.StatusFound)
		return
	}
	h.render(w, dashboardPage, dto.UserFromSession(session))
}

func (h *AdminHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := auth.SessionFromContext(r.Context())
	if !ok || !session.IsAdmin() {
		respond.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	respond.JSON(w, http.StatusOK, dto.DashboardResponse{
		User:        dto.UserFromSession(session),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *AdminHandler) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, data); err != nil {
		h.logger.Error("render page", zap.String("template", tmpl.Name()), zap.Error(err))
	}
}
