package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arktty/webtty/src/handler/terminal"
)

// Build information - set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Runtime information.
var (
	startTime    = time.Now()
	restartCount = 0
)

func init() {
	if countStr := os.Getenv("WEBTTY_RESTART_COUNT"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err == nil {
			restartCount = count
		}
	}
}

// SystemHandler handles the process-wide admin surface: health, restart,
// the session listing, and the terminal client's static configuration.
type SystemHandler struct {
	*BaseHandler
	terminal *TerminalHandler
	appTitle string
	hscroll  bool
}

// NewSystemHandler creates a SystemHandler. appTitle and hscroll feed
// GET /config, the client's one source of presentation settings.
func NewSystemHandler(th *TerminalHandler, appTitle string, hscroll bool) *SystemHandler {
	return &SystemHandler{
		BaseHandler: NewBaseHandler(),
		terminal:    th,
		appTitle:    appTitle,
		hscroll:     hscroll,
	}
}

// HealthResponse is the response body for the health endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	GitCommit     string  `json:"gitCommit"`
	BuildTime     string  `json:"buildTime"`
	GoVersion     string  `json:"goVersion"`
	OS            string  `json:"os"`
	Arch          string  `json:"arch"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	RestartCount  int     `json:"restartCount"`
	StartedAt     string  `json:"startedAt"`
} // @name HealthResponse

// HandleHealth handles GET requests to /health.
// @Summary Health check
// @Description Returns health status and build information
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *SystemHandler) HandleHealth(c *gin.Context) {
	uptime := time.Since(startTime)
	h.SendJSON(c, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		RestartCount:  restartCount,
		StartedAt:     startTime.Format(time.RFC3339),
	})
}

// RestartResponse is the response body for POST /restart.
type RestartResponse struct {
	OK bool `json:"ok"`
} // @name RestartResponse

// HandleRestart handles POST requests to /restart. It destroys every
// session in the registry and reports success; it does not restart the
// process itself — the process is expected to keep running and accept
// new sessions immediately after.
// @Summary Destroy all sessions
// @Description Destroys every terminal session, closing any attached connections
// @Tags system
// @Produce json
// @Success 200 {object} RestartResponse
// @Router /restart [post]
func (h *SystemHandler) HandleRestart(c *gin.Context) {
	h.terminal.Registry().DestroyAll()
	h.SendJSON(c, http.StatusOK, RestartResponse{OK: true})
}

// ChildSummary is one entry in SessionsResponse.Children.
type ChildSummary struct {
	PID     int    `json:"pid"`
	Command string `json:"command"`
} // @name ChildSummary

// SessionSummary is the JSON view of a terminal.Summary.
type SessionSummary struct {
	SessionID      string `json:"sessionId"`
	State          string `json:"state"`
	PID            int    `json:"pid"`
	LastActivityAt string `json:"lastActivityAt"`
	ScrollbackSize int    `json:"scrollbackSize"`
} // @name SessionSummary

// SessionsResponse is the response body for GET /sessions.
type SessionsResponse struct {
	PPID     int              `json:"ppid"`
	Children []ChildSummary   `json:"children"`
	Sessions []SessionSummary `json:"sessions"`
} // @name SessionsResponse

// HandleSessions handles GET requests to /sessions.
// @Summary List terminal sessions
// @Description Returns the process's own pid/children plus every registered terminal session
// @Tags system
// @Produce json
// @Success 200 {object} SessionsResponse
// @Router /sessions [get]
func (h *SystemHandler) HandleSessions(c *gin.Context) {
	summaries := h.terminal.Registry().Summaries()
	sessions := make([]SessionSummary, 0, len(summaries))
	for _, s := range summaries {
		sessions = append(sessions, SessionSummary{
			SessionID:      s.SessionID,
			State:          stateString(s.State),
			PID:            s.PID,
			LastActivityAt: s.LastActivityAt.Format(time.RFC3339),
			ScrollbackSize: s.ScrollbackSize,
		})
	}

	h.SendJSON(c, http.StatusOK, SessionsResponse{
		PPID:     os.Getppid(),
		Children: listChildren(os.Getpid()),
		Sessions: sessions,
	})
}

// listChildren enumerates the calling process's direct children via /proc.
// Returns an empty slice on any platform or error where /proc isn't
// available, rather than failing the request.
func listChildren(pid int) []ChildSummary {
	children := []ChildSummary{}
	if runtime.GOOS != "linux" {
		return children
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return children
	}

	for _, entry := range entries {
		childPID, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		statData, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "stat"))
		if err != nil {
			continue
		}
		ppid, comm, ok := parseProcStat(string(statData))
		if !ok || ppid != pid {
			continue
		}
		children = append(children, ChildSummary{PID: childPID, Command: comm})
	}
	return children
}

// parseProcStat extracts the parent pid and command name from the contents
// of /proc/<pid>/stat. The command field is parenthesized and may itself
// contain spaces or parentheses, so it's located by the last ')' rather
// than by naive field splitting.
func parseProcStat(stat string) (ppid int, comm string, ok bool) {
	open := strings.IndexByte(stat, '(')
	closeIdx := strings.LastIndexByte(stat, ')')
	if open < 0 || closeIdx < 0 || closeIdx < open {
		return 0, "", false
	}
	comm = stat[open+1 : closeIdx]

	fields := strings.Fields(stat[closeIdx+1:])
	if len(fields) < 2 {
		return 0, "", false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, "", false
	}
	return ppid, comm, true
}

func stateString(s terminal.State) string {
	return s.String()
}

// ConfigResponse is the response body for GET /config.
type ConfigResponse struct {
	HScroll      bool     `json:"hscroll"`
	AppTitle     string   `json:"appTitle"`
	ShellCommand []string `json:"shellCommand"`
} // @name ConfigResponse

// HandleConfig handles GET requests to /config.
// @Summary Terminal client configuration
// @Description Returns presentation settings the client driver applies once it binds to a session
// @Tags system
// @Produce json
// @Success 200 {object} ConfigResponse
// @Router /config [get]
func (h *SystemHandler) HandleConfig(c *gin.Context) {
	h.SendJSON(c, http.StatusOK, ConfigResponse{
		HScroll:      h.hscroll,
		AppTitle:     h.appTitle,
		ShellCommand: h.terminal.ShellCommand(),
	})
}
