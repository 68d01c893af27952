package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/parpass/parpass-backend/shared/utils"
	"github.com/parpass/parpass-backend/v1/models"
	"github.com/parpass/parpass-backend/v1/services"

	"gorm.io/gorm"
)

// V1Handler handles all V1 API routes
type V1Handler struct {
	checkInService      *services.CheckInService
	memberService       *services.MemberService
	courseService       *services.CourseService
	notificationService *services.NotificationService
}

// NewV1Handler creates a new V1 handler
func NewV1Handler(db *gorm.DB, pushChannel services.PushChannel) *V1Handler {
	usageService := services.NewUsageService(db)
	targetingService := services.NewTargetingService(db)
	return &V1Handler{
		checkInService:      services.NewCheckInService(db),
		memberService:       services.NewMemberService(db, usageService),
		courseService:       services.NewCourseService(db),
		notificationService: services.NewNotificationService(db, targetingService, pushChannel),
	}
}

// SetupV1Routes configures all V1 API routes
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	mux.Handle("/api/courses", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleCourses)))
	mux.Handle("/api/courses/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleCourses)))

	mux.Handle("/api/members", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleMembers)))
	mux.Handle("/api/members/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleMembers)))

	mux.Handle("/api/check-in", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleCheckIn)))

	mux.Handle("/api/health-plans", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleHealthPlans)))

	mux.Handle("/api/stats/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleStats)))

	mux.Handle("/api/notifications/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleNotifications)))
}

// forbiddenResponse carries the machine-readable denial code alongside the message
type forbiddenResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// respondServiceError maps typed service errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	var notFound *services.NotFoundError
	var forbidden *services.ForbiddenError
	var validation *services.ValidationError
	var conflict *services.ConflictError

	switch {
	case errors.As(err, &notFound):
		utils.RespondWithError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &forbidden):
		utils.RespondWithJSON(w, http.StatusForbidden, forbiddenResponse{
			Error:  forbidden.Message,
			Reason: forbidden.Reason,
		})
	case errors.As(err, &validation):
		utils.RespondWithError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &conflict):
		utils.RespondWithError(w, http.StatusConflict, conflict.Message)
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// handleCheckIn handles POST /api/check-in
func (h *V1Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.checkInService.CheckIn(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, resp)
}

// handleCourses handles course-related routes
func (h *V1Handler) handleCourses(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/courses")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/courses and POST /api/courses
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			h.listCourses(w, r)
		case http.MethodPost:
			h.createCourse(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	courseId := parts[0]

	// Handle base course endpoint: GET /api/courses/:courseId
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.getCourse(w, r, courseId)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "reviews":
			switch r.Method {
			case http.MethodGet:
				h.listReviews(w, r, courseId)
			case http.MethodPost:
				h.upsertReview(w, r, courseId)
			default:
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		case "rating":
			if r.Method != http.MethodGet {
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h.getRating(w, r, courseId)
		default:
			utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		}
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handleMembers handles member-related routes
func (h *V1Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/members")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: POST /api/members
	if len(parts) == 1 && parts[0] == "" {
		if r.Method != http.MethodPost {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.enrollMember(w, r)
		return
	}

	// Handle code lookup: GET /api/members/code/:code
	if parts[0] == "code" {
		if len(parts) != 2 || r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.getMemberByCode(w, r, parts[1])
		return
	}

	memberId := parts[0]
	if len(parts) < 2 {
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	switch parts[1] {
	case "usage":
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.getUsage(w, r, memberId)
	case "history":
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.getHistory(w, r, memberId)
	case "favorites":
		h.handleFavorites(w, r, memberId, parts[2:])
	case "preferences":
		h.handlePreferences(w, r, memberId, parts[2:])
	case "notifications":
		h.handleMemberNotifications(w, r, memberId, parts[2:])
	default:
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	}
}

// handleFavorites handles /api/members/:memberId/favorites[/:courseId]
func (h *V1Handler) handleFavorites(w http.ResponseWriter, r *http.Request, memberId string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.listFavorites(w, r, memberId)
		case http.MethodPost:
			h.addFavorite(w, r, memberId)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}
	if len(rest) == 1 && r.Method == http.MethodDelete {
		h.removeFavorite(w, r, memberId, rest[0])
		return
	}
	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handlePreferences handles /api/members/:memberId/preferences[/onboarding-status]
func (h *V1Handler) handlePreferences(w http.ResponseWriter, r *http.Request, memberId string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.getPreferences(w, r, memberId)
		case http.MethodPut:
			h.updatePreferences(w, r, memberId)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}
	if len(rest) == 1 && rest[0] == "onboarding-status" && r.Method == http.MethodGet {
		h.getOnboardingStatus(w, r, memberId)
		return
	}
	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handleMemberNotifications handles /api/members/:memberId/notifications[/unread-count]
func (h *V1Handler) handleMemberNotifications(w http.ResponseWriter, r *http.Request, memberId string, rest []string) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if len(rest) == 0 {
		h.getInbox(w, r, memberId)
		return
	}
	if len(rest) == 1 && rest[0] == "unread-count" {
		h.getUnreadCount(w, r, memberId)
		return
	}
	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

// handleHealthPlans handles GET /api/health-plans
func (h *V1Handler) handleHealthPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	plans, err := h.courseService.ListHealthPlans()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, plans)
}

// handleStats handles the /api/stats/* read endpoints
func (h *V1Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var result interface{}
	var err error

	switch strings.TrimPrefix(r.URL.Path, "/api/stats/") {
	case "overview":
		result, err = h.courseService.OverviewStats()
	case "popular-courses":
		result, err = h.courseService.PopularCourses(parseLimit(r))
	case "rounds-by-month":
		result, err = h.courseService.RoundsByMonth()
	case "tier-breakdown":
		result, err = h.courseService.TierBreakdown()
	case "top-members":
		result, err = h.courseService.TopMembers(parseLimit(r))
	default:
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, result)
}

// handleNotifications handles the /api/notifications/* routes
func (h *V1Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/notifications")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) == 1 {
		switch parts[0] {
		case "broadcast":
			h.requirePost(w, r, h.broadcast)
		case "targeted":
			h.requirePost(w, r, h.targeted)
		case "history":
			if r.Method != http.MethodGet {
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h.notificationHistory(w, r)
		case "stats":
			if r.Method != http.MethodGet {
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h.notificationStats(w, r)
		default:
			utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
		}
		return
	}

	if len(parts) == 2 {
		if parts[0] == "member" {
			if r.Method != http.MethodPost {
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h.sendToMember(w, r, parts[1])
			return
		}
		if parts[1] == "read" {
			if r.Method != http.MethodPost {
				utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
				return
			}
			h.markRead(w, r, parts[0])
			return
		}
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func (h *V1Handler) requirePost(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	next(w, r)
}

// Course handlers

func (h *V1Handler) listCourses(w http.ResponseWriter, r *http.Request) {
	var tierFilter *models.Tier
	if tier := r.URL.Query().Get("tier"); tier != "" {
		t := models.Tier(tier)
		if t != models.TierCore && t != models.TierPremium {
			utils.RespondWithError(w, http.StatusBadRequest, "tier must be core or premium")
			return
		}
		tierFilter = &t
	}

	courses, err := h.courseService.ListCourses(tierFilter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, courses)
}

func (h *V1Handler) createCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	course, err := h.courseService.CreateCourse(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, course)
}

func (h *V1Handler) getCourse(w http.ResponseWriter, r *http.Request, courseId string) {
	course, err := h.courseService.GetCourse(courseId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, course)
}

func (h *V1Handler) listReviews(w http.ResponseWriter, r *http.Request, courseId string) {
	reviews, err := h.courseService.ListReviews(courseId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *V1Handler) upsertReview(w http.ResponseWriter, r *http.Request, courseId string) {
	var req models.CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	review, err := h.courseService.UpsertReview(courseId, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, review)
}

func (h *V1Handler) getRating(w http.ResponseWriter, r *http.Request, courseId string) {
	if _, err := h.courseService.GetCourse(courseId); err != nil {
		respondServiceError(w, err)
		return
	}
	summary, err := h.courseService.Rating(courseId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, summary)
}

// Member handlers

func (h *V1Handler) enrollMember(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	member, err := h.memberService.Enroll(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, member)
}

func (h *V1Handler) getMemberByCode(w http.ResponseWriter, r *http.Request, code string) {
	member, err := h.memberService.GetByCode(code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, member)
}

func (h *V1Handler) getUsage(w http.ResponseWriter, r *http.Request, memberId string) {
	usage, err := h.memberService.Usage(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, usage)
}

func (h *V1Handler) getHistory(w http.ResponseWriter, r *http.Request, memberId string) {
	history, err := h.memberService.History(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, history)
}

func (h *V1Handler) listFavorites(w http.ResponseWriter, r *http.Request, memberId string) {
	favorites, err := h.memberService.Favorites(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, favorites)
}

func (h *V1Handler) addFavorite(w http.ResponseWriter, r *http.Request, memberId string) {
	var req models.AddFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CourseID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "course_id is required")
		return
	}
	if err := h.memberService.AddFavorite(memberId, req.CourseID); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]bool{"success": true})
}

func (h *V1Handler) removeFavorite(w http.ResponseWriter, r *http.Request, memberId, courseId string) {
	if err := h.memberService.RemoveFavorite(memberId, courseId); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *V1Handler) getPreferences(w http.ResponseWriter, r *http.Request, memberId string) {
	pref, err := h.memberService.GetPreferences(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pref)
}

func (h *V1Handler) updatePreferences(w http.ResponseWriter, r *http.Request, memberId string) {
	var req models.UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	pref, err := h.memberService.UpdatePreferences(memberId, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pref)
}

func (h *V1Handler) getOnboardingStatus(w http.ResponseWriter, r *http.Request, memberId string) {
	status, err := h.memberService.OnboardingStatus(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, status)
}

// Notification handlers

func (h *V1Handler) broadcast(w http.ResponseWriter, r *http.Request) {
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.notificationService.Broadcast(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *V1Handler) targeted(w http.ResponseWriter, r *http.Request) {
	var req models.TargetedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.notificationService.Targeted(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *V1Handler) sendToMember(w http.ResponseWriter, r *http.Request, memberId string) {
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := h.notificationService.SendToMember(r.Context(), memberId, &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *V1Handler) notificationHistory(w http.ResponseWriter, r *http.Request) {
	var typeFilter *models.NotificationType
	if kind := r.URL.Query().Get("type"); kind != "" {
		t := models.NotificationType(kind)
		if t != models.NotificationTypeBroadcast && t != models.NotificationTypeTargeted && t != models.NotificationTypeIndividual {
			utils.RespondWithError(w, http.StatusBadRequest, "type must be broadcast, targeted or individual")
			return
		}
		typeFilter = &t
	}

	logs, err := h.notificationService.History(parseLimit(r), typeFilter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, logs)
}

func (h *V1Handler) notificationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.notificationService.Stats()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *V1Handler) getInbox(w http.ResponseWriter, r *http.Request, memberId string) {
	inbox, err := h.notificationService.Inbox(memberId, parseLimit(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, inbox)
}

func (h *V1Handler) getUnreadCount(w http.ResponseWriter, r *http.Request, memberId string) {
	count, err := h.notificationService.UnreadCount(memberId)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, models.UnreadCountResponse{UnreadCount: count})
}

func (h *V1Handler) markRead(w http.ResponseWriter, r *http.Request, notificationId string) {
	if err := h.notificationService.MarkRead(notificationId); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// parseLimit reads the optional ?limit query parameter
func parseLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return 0
}
