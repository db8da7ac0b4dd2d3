package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"

	"nimbus-portal/internal/enrichment"
	"nimbus-portal/internal/middleware"
	"nimbus-portal/internal/models"
	"nimbus-portal/internal/repository"
	"nimbus-portal/internal/service"
	"nimbus-portal/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgRegistered    = "Welcome aboard! Let's tailor your cloud profile."
	msgAuthenticated = "Logged in successfully."
	msgRejected      = "Incorrect password. Try again."
	msgProfileSaved  = "Profile saved. Time to explore your cloud footprint!"

	limerickDownloadName = "Limerick.txt"
)

// DashboardCollector gathers the enrichment shown next to a profile.
type DashboardCollector interface {
	Collect(ctx context.Context) enrichment.Dashboard
}

type PortalHandler interface {
	LoginPage(c *gin.Context)
	Login(c *gin.Context)
	CompleteProfilePage(c *gin.Context)
	CompleteProfile(c *gin.Context)
	Dashboard(c *gin.Context)
	About(c *gin.Context)
	DownloadLimerick(c *gin.Context)
}

type portalHandler struct {
	authService    service.AuthService
	profileService service.ProfileService
	collector      DashboardCollector
	sessions       *session.Manager
	project        string
	limerickPath   string
	log            *zap.Logger
}

type PortalConfig struct {
	AuthService    service.AuthService
	ProfileService service.ProfileService
	Collector      DashboardCollector
	Sessions       *session.Manager
	ProjectName    string
	LimerickPath   string
}

func NewPortalHandler(cfg PortalConfig, log *zap.Logger) PortalHandler {
	return &portalHandler{
		authService:    cfg.AuthService,
		profileService: cfg.ProfileService,
		collector:      cfg.Collector,
		sessions:       cfg.Sessions,
		project:        cfg.ProjectName,
		limerickPath:   cfg.LimerickPath,
		log:            log,
	}
}

func (h *portalHandler) LoginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Sign in",
		"Flash": h.sessions.PopFlash(c),
	})
}

func (h *portalHandler) Login(c *gin.Context) {
	db, ok := h.conn(c)
	if !ok {
		return
	}

	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Debug("Incomplete login form", zap.Error(err))
		h.renderRejected(c)
		return
	}

	result, err := h.authService.Authenticate(c.Request.Context(), db, req.Username, req.Password)
	if err != nil {
		h.log.Error("Failed to authenticate", zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Something went wrong while signing you in.")
		return
	}

	switch result.Outcome {
	case service.Registered:
		h.redirectWithFlash(c, result.Username, profilePath(result.Username), msgRegistered, session.FlashInfo)
	case service.Authenticated:
		h.redirectWithFlash(c, result.Username, dashboardPath(result.Username), msgAuthenticated, session.FlashSuccess)
	default:
		h.renderRejected(c)
	}
}

func (h *portalHandler) CompleteProfilePage(c *gin.Context) {
	db, ok := h.conn(c)
	if !ok {
		return
	}

	user, ok := h.loadUser(c, db)
	if !ok {
		return
	}

	h.render(c, http.StatusOK, "complete_profile.html", gin.H{
		"Title":      "Complete your profile",
		"Flash":      h.sessions.PopFlash(c),
		"User":       user,
		"ProfileURL": profilePath(user.Username),
	})
}

func (h *portalHandler) CompleteProfile(c *gin.Context) {
	db, ok := h.conn(c)
	if !ok {
		return
	}

	var input models.Profile
	if err := c.ShouldBind(&input); err != nil {
		h.renderError(c, http.StatusBadRequest, "The profile form could not be read.")
		return
	}

	user, err := h.profileService.Complete(c.Request.Context(), db, c.Param("username"), input)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.renderNotFound(c)
			return
		}
		h.log.Error("Failed to save profile", zap.String("username", c.Param("username")), zap.Error(err))
		h.renderError(c, http.StatusInternalServerError, "Your profile could not be saved.")
		return
	}

	h.redirectWithFlash(c, user.Username, dashboardPath(user.Username), msgProfileSaved, session.FlashSuccess)
}

func (h *portalHandler) Dashboard(c *gin.Context) {
	db, ok := h.conn(c)
	if !ok {
		return
	}

	user, ok := h.loadUser(c, db)
	if !ok {
		return
	}

	h.render(c, http.StatusOK, "dashboard.html", gin.H{
		"Title":     "Dashboard",
		"Flash":     h.sessions.PopFlash(c),
		"User":       user,
		"ProfileURL": profilePath(user.Username),
		"Dashboard":  h.collector.Collect(c.Request.Context()),
	})
}

func (h *portalHandler) About(c *gin.Context) {
	h.render(c, http.StatusOK, "about.html", gin.H{
		"Title":      "About",
		"Highlights": aboutHighlights,
		"Timeline":   aboutTimeline,
	})
}

func (h *portalHandler) DownloadLimerick(c *gin.Context) {
	info, err := os.Stat(h.limerickPath)
	if err != nil || info.IsDir() {
		h.renderNotFound(c)
		return
	}
	c.FileAttachment(h.limerickPath, limerickDownloadName)
}

func (h *portalHandler) conn(c *gin.Context) (repository.DBTX, bool) {
	db, ok := middleware.Conn(c)
	if !ok {
		h.log.Error("Store connection missing from request context", zap.String("path", c.Request.URL.Path))
		h.renderError(c, http.StatusInternalServerError, "Storage is unavailable. Please try again later.")
	}
	return db, ok
}

func (h *portalHandler) loadUser(c *gin.Context, db repository.DBTX) (*models.User, bool) {
	user, err := h.profileService.Get(c.Request.Context(), db, c.Param("username"))
	if err == nil {
		return user, true
	}
	if errors.Is(err, service.ErrUserNotFound) {
		h.renderNotFound(c)
		return nil, false
	}
	h.log.Error("Failed to load user", zap.String("username", c.Param("username")), zap.Error(err))
	h.renderError(c, http.StatusInternalServerError, "Something went wrong while loading this page.")
	return nil, false
}

func (h *portalHandler) redirectWithFlash(c *gin.Context, username, location, message string, kind session.FlashKind) {
	if err := h.sessions.SetFlash(c, username, message, kind); err != nil {
		h.log.Error("Failed to write session cookie", zap.Error(err))
	}
	c.Redirect(http.StatusFound, location)
}

func (h *portalHandler) renderRejected(c *gin.Context) {
	h.render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Sign in",
		"Flash": &session.Flash{Message: msgRejected, Kind: session.FlashError},
	})
}

func (h *portalHandler) renderNotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "We couldn't find that page.")
}

func (h *portalHandler) renderError(c *gin.Context, status int, message string) {
	h.render(c, status, "error.html", gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}

func (h *portalHandler) render(c *gin.Context, status int, name string, data gin.H) {
	data["Project"] = h.project
	if username := c.GetString(middleware.ContextUsername); username != "" {
		data["CurrentUser"] = username
		data["CurrentUserURL"] = dashboardPath(username)
	}
	c.HTML(status, name, data)
}

func profilePath(username string) string {
	return "/profile/" + url.PathEscape(username) + "/complete"
}

func dashboardPath(username string) string {
	return "/dashboard/" + url.PathEscape(username)
}
