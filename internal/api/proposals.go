package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time durations

	"plura/internal/domain"  // Importing domain models
	"plura/internal/funding" // Funding engine and allocation book
	"plura/internal/params"  // Parameter accessor
	"plura/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal credit amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// CreateProposalRequest represents a new proposal submission
type CreateProposalRequest struct {
	Title       string     `json:"title" binding:"required"` // Proposal title
	Description string     `json:"description"`              // Proposal description
	DocumentID  string     `json:"document_id"`              // External document reference
	Deadline    *time.Time `json:"deadline"`                 // Optional funding deadline
}

// UpdateProposalRequest represents a proposal update
type UpdateProposalRequest struct {
	Title       string     `json:"title" binding:"required"` // Proposal title
	Description string     `json:"description"`              // Proposal description
	Status      string     `json:"status"`                   // New status, if valid
	Deadline    *time.Time `json:"deadline"`                 // Optional new deadline
}

// AllocateRequest represents a credit allocation to a proposal
type AllocateRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"` // Credits to allocate
}

// proposalIDParam parses the :id path parameter
func proposalIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid proposal id"})
		return 0, false
	}
	return uint(id), true
}

// CreateProposalHandler creates a new proposal owned by the authenticated user
func CreateProposalHandler(repo *funding.ProposalRepo, pa params.Accessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CreateProposalRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Default deadline comes from the funding period parameter
		deadline := time.Now().AddDate(0, 0, pa.GetInt(domain.ParamProposalFundingPeriodDays, 14))
		if req.Deadline != nil {
			deadline = *req.Deadline
		}
		proposal := domain.Proposal{
			Title:            req.Title,
			Description:      req.Description,
			DocumentID:       req.DocumentID,
			UserID:           username,
			Status:           domain.StatusOpen,
			CreditsAllocated: decimal.Zero,
			Deadline:         deadline,
		}
		if err := repo.Create(c.Request.Context(), &proposal); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": username,    // Creator
				"error":   err.Error(), // Error message
			}).Error("Failed to create proposal") // Log failure
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create proposal"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
	}
}

// ListProposalsHandler returns proposals ordered by allocated credits, each
// with its derived quadratic score
func ListProposalsHandler(repo *funding.ProposalRepo, book *funding.AllocationBook, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()              // Context for Redis operations
		onlyOpen := c.Query("open") == "true"    // Restrict to open proposals
		page := 1                                // Default page number
		pageSize := 20                           // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// Check and set page size within limits
		if ps := c.Query("page_size"); ps != "" {
			// If valid, set page size
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size
			}
		}
		// Create a cache key based on the query parameters
		cacheKey := "proposals:list:open=" + strconv.FormatBool(onlyOpen) + ":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached struct {
			Proposals  []domain.Proposal `json:"proposals"`   // List of proposals
			Page       int               `json:"page"`        // Current page
			PageSize   int               `json:"page_size"`   // Page size
			Total      int64             `json:"total"`       // Total number of proposals
			TotalPages int               `json:"total_pages"` // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"proposals":   cached.Proposals,  // List of proposals
				"page":        cached.Page,       // Current page
				"page_size":   cached.PageSize,   // Page size
				"total":       cached.Total,      // Total number of proposals
				"total_pages": cached.TotalPages, // Total pages
				"cached":      true,              // Indicate response is from cache
			})
			return
		}
		offset := (page - 1) * pageSize // Calculate offset for pagination
		proposals, total, err := repo.FindAll(c.Request.Context(), onlyOpen, pageSize, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch proposals"})
			return
		}
		// Derive the priority score for every listed proposal
		for i := range proposals {
			score, err := book.QuadraticScore(c.Request.Context(), proposals[i].ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute scores"})
				return
			}
			proposals[i].PriorityScore = score
		}
		// The total number of pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		respData := gin.H{
			"proposals":   proposals,  // List of proposals
			"page":        page,       // Current page
			"page_size":   pageSize,   // Page size
			"total":       total,      // Total number of proposals
			"total_pages": totalPages, // Total pages
			"cached":      false,      // Indicate response is not from cache
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData) // Return the response
	}
}

// MyProposalsHandler returns proposals created by the authenticated user
func MyProposalsHandler(repo *funding.ProposalRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		proposals, err := repo.FindByUser(c.Request.Context(), username, 50, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch proposals"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"proposals": proposals})
	}
}

// GetProposalHandler returns one proposal with the full funding calculation:
// raw credits, per-user square roots, quadratic score and matching bonus
func GetProposalHandler(repo *funding.ProposalRepo, book *funding.AllocationBook, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := proposalIDParam(c)
		if !ok {
			return
		}
		ctx := context.Background()                                      // Context for Redis operations
		cacheKey := "proposal:" + strconv.Itoa(int(id)) + ":details"     // Cache key for the details
		var cached gin.H                                                 // Cached response body
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached) // Return cached details
			return
		}
		proposal, err := repo.Find(c.Request.Context(), id)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": "Proposal not found"})
			return
		}
		credits, err := book.ByProposal(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch allocations"})
			return
		}
		// Derived values, recomputed freely on every read
		roots := funding.SquareRoots(credits)
		score := funding.Score(credits)
		bonus := funding.Bonus(score, proposal.CreditsAllocated)
		proposal.PriorityScore = score
		resp := gin.H{
			"proposal": proposal, // The proposal with its derived score
			"credits":  credits,  // Individual allocations
			"calculation": gin.H{
				"raw_credits":         proposal.CreditsAllocated, // Raw sum of allocations
				"square_root_sums":    roots,                     // Per-user square roots
				"quadratic_score":     score,                     // (sum of square roots)^2
				"matching_fund_bonus": bonus,                     // Non-negative excess over raw
			},
			"cached": false,
		}
		// Cache the details for 60 seconds
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp)
	}
}

// UpdateProposalHandler lets the creator (or an admin) update a proposal
func UpdateProposalHandler(repo *funding.ProposalRepo, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := proposalIDParam(c)
		if !ok {
			return
		}
		var req UpdateProposalRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		proposal, err := repo.Find(c.Request.Context(), id)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": "Proposal not found"})
			return
		}
		// Only the creator or an admin may update the proposal
		if proposal.UserID != username && !isAdmin(db, username) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the creator can update the proposal"})
			return
		}
		proposal.Title = req.Title
		proposal.Description = req.Description
		// Update status if valid
		if domain.ValidStatus(req.Status) {
			proposal.Status = req.Status
		}
		// Update deadline if provided
		if req.Deadline != nil {
			proposal.Deadline = *req.Deadline
		}
		if err := repo.Update(c.Request.Context(), &proposal); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update proposal"})
			return
		}
		// Invalidate the cached details
		if rdb, ok := c.MustGet("redisClient").(*redis.Client); ok {
			_ = utils.DeleteCache(context.Background(), rdb, "proposal:"+strconv.Itoa(int(id))+":details")
		}
		c.JSON(http.StatusOK, gin.H{"proposal": proposal})
	}
}

// AllocateHandler moves credits from the authenticated user to a proposal
// through the funding engine
func AllocateHandler(engine *funding.Engine, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		id, ok := proposalIDParam(c)
		if !ok {
			return
		}
		var req AllocateRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		amount := decimal.NewFromFloat(req.Amount)
		result, err := engine.Allocate(c.Request.Context(), username, id, amount)
		// Handle allocation result
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id":     username,    // Contributing user
				"proposal_id": id,          // Target proposal
				"amount":      req.Amount,  // Requested credits
				"error":       err.Error(), // Error message
			}).Error("Allocation failed") // Log allocation failure
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		// Log successful allocation
		logrus.WithFields(logrus.Fields{
			"user_id":         username,                        // Contributing user
			"proposal_id":     id,                              // Target proposal
			"amount":          req.Amount,                      // Allocated credits
			"quadratic_score": result.QuadraticScore,           // New derived score
			"type":            domain.KindProposalFund,         // Transaction kind
			"timestamp":       time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Credits allocated") // Log allocation success
		// Invalidate balance, history, and proposal caches
		ctx := context.Background()
		invalidateUserCaches(ctx, rdb, username)
		_ = utils.DeleteCache(ctx, rdb, "proposal:"+strconv.Itoa(int(id))+":details")
		// Invalidate the first pages of both list variants (simple version)
		for _, open := range []string{"true", "false"} {
			for i := 1; i <= 5; i++ {
				_ = utils.DeleteCache(ctx, rdb, "proposals:list:open="+open+":page="+strconv.Itoa(i)+":size=20")
			}
		}
		c.JSON(http.StatusOK, result) // Return the full allocation result
	}
}

// isAdmin checks the user's role in the database
func isAdmin(db *gorm.DB, username string) bool {
	var user domain.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return false
	}
	return user.Role == "admin"
}
