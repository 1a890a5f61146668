package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation
	"time"     // Time durations

	"plura/internal/domain"  // Importing domain models
	"plura/internal/funding" // Matching fund service
	"plura/internal/ledger"  // Credit ledger
	"plura/internal/params"  // Parameter service
	"plura/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal credit amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

// UpdateParameterRequest represents an admin parameter change
type UpdateParameterRequest struct {
	Name  string `json:"name" binding:"required"`  // Parameter name
	Value string `json:"value" binding:"required"` // New value, stored as string
}

// AddFundsRequest represents a matching fund top-up
type AddFundsRequest struct {
	Amount float64 `json:"amount" binding:"required"` // Amount to add, any sign
}

// AdjustRequest represents an admin credit adjustment for a user
type AdjustRequest struct {
	UserID string  `json:"user_id" binding:"required"` // Target account
	Amount float64 `json:"amount" binding:"required"`  // Signed adjustment
	Reason string  `json:"reason"`                     // Audit note, logged only
}

// ListParametersHandler returns every admin parameter
func ListParametersHandler(svc *params.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ps, err := svc.All()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch parameters"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"parameters": ps})
	}
}

// UpdateParameterHandler creates or updates an admin parameter
func UpdateParameterHandler(svc *params.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateParameterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := svc.Set(req.Name, req.Value)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update parameter"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"parameter": p})
	}
}

// GetMatchingFundHandler returns the pooled matching fund
func GetMatchingFundHandler(fund *funding.MatchingFundService) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := fund.Get(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch matching fund"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matching_fund": f})
	}
}

// AddMatchingFundHandler adds to the pooled matching fund
func AddMatchingFundHandler(fund *funding.MatchingFundService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddFundsRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		total, err := fund.AddFunds(c.Request.Context(), decimal.NewFromFloat(req.Amount))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update matching fund"})
			return
		}
		// Log the top-up
		logrus.WithFields(logrus.Fields{
			"amount":    req.Amount,                      // Added amount
			"new_total": total,                           // Resulting pool total
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Matching fund updated")
		c.JSON(http.StatusOK, gin.H{"total_amount": total})
	}
}

// AdjustCreditsHandler records an admin adjustment transaction for a user.
// The reason is an informational audit note; it is logged, not stored.
func AdjustCreditsHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		amount := decimal.NewFromFloat(req.Amount)
		t, err := l.RecordTransaction(c.Request.Context(), req.UserID, amount, domain.KindAdminAdjustment, nil)
		if err != nil {
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"user_id": req.UserID,  // Target account
				"amount":  req.Amount,  // Signed adjustment
				"error":   err.Error(), // Error message
			}).Error("Adjustment failed") // Log adjustment failure
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		// Log the adjustment with its reason
		logrus.WithFields(logrus.Fields{
			"user_id":   req.UserID,                      // Target account
			"amount":    req.Amount,                      // Signed adjustment
			"reason":    req.Reason,                      // Audit note
			"type":      domain.KindAdminAdjustment,      // Transaction kind
			"timestamp": time.Now().Format(time.RFC3339), // Current timestamp
		}).Info("Admin credit adjustment")
		// Invalidate balance and history cache for the adjusted user
		invalidateUserCaches(context.Background(), rdb, req.UserID)
		c.JSON(http.StatusOK, gin.H{"transaction": t})
	}
}

// txTimeBound parses a created_at filter into epoch milliseconds, the unit
// the column stores. Accepts epoch milliseconds, RFC3339, or a bare
// YYYY-MM-DD date; endOfDay widens a bare date to its last millisecond so
// the upper bound stays inclusive.
func txTimeBound(value string, endOfDay bool) (int64, bool) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ms, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli(), true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return 0, false
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t.UnixMilli(), true
}

// ListTransactionsHandler returns all transactions, with optional filtering by user, kind, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		// Build cache key from all query params
		var keyParts []string // Parts of the cache key
		// Append each query parameter to the key parts
		for _, k := range []string{"user_id", "kind", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
		}
		// Join key parts to form the final cache key
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached struct {
			Transactions []domain.CreditTransaction `json:"transactions"` // List of transactions
			Page         int                        `json:"page"`         // Current page
			PageSize     int                        `json:"page_size"`    // Page size
			Total        int64                      `json:"total"`        // Total number of transactions
			TotalPages   int                        `json:"total_pages"`  // Total pages
		}
		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // List of transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total number of transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,                // Indicate response is from cache
			})
			return
		}
		page := 1      // Default page number
		pageSize := 20 // Default page size
		// Check and set page number and size from query params
		if p := c.Query("page"); p != "" {
			// If valid, set page number
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
		offset := (page - 1) * pageSize                // Calculate offset for pagination
		query := db.Model(&domain.CreditTransaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by user ID
		}
		if kind := c.Query("kind"); kind != "" {
			query = query.Where("kind = ?", kind) // Filter by transaction kind
		}
		// created_at stores epoch milliseconds, so date filters must be
		// converted before comparing
		if from := c.Query("from"); from != "" {
			ms, ok := txTimeBound(from, false)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
				return
			}
			query = query.Where("created_at >= ?", ms) // Filter by start date
		}
		if to := c.Query("to"); to != "" {
			ms, ok := txTimeBound(to, true)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
				return
			}
			query = query.Where("created_at <= ?", ms) // Filter by end date
		}
		var total int64 // Total transaction count
		// Get total count of transactions matching the filters
		if err := query.Count(&total).Error; err != nil {
			// If error occurs, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.CreditTransaction // Slice to hold transactions
		// Fetch paginated transactions with filters applied
		if err := query.Order("created_at desc").Offset(offset).Limit(pageSize).Find(&txs).Error; err != nil {
			// If error occurs, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		// The total number of pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		respData := gin.H{
			"transactions": txs,        // List of transactions
			"page":         page,       // Current page
			"page_size":    pageSize,   // Page size
			"total":        total,      // Total number of transactions
			"total_pages":  totalPages, // Total pages
			"cached":       false,      // Indicate response is not from cache
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, 60*time.Second)
		c.JSON(http.StatusOK, respData) // Return the response
	}
}
