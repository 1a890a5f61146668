package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time durations

	"plura/internal/domain" // Importing domain models
	"plura/internal/ledger" // Credit ledger
	"plura/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// GetCreditsHandler returns the authenticated user's credit balance,
// creating it with the initial allocation on first access
func GetCreditsHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()             // Context for Redis operations
		cacheKey := "credits:user:" + username  // Cache key for the balance
		var credit domain.UserCredit            // Balance struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &credit)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"credits": credit, "cached": true})
			return
		}
		// Not cached: read (or lazily seed) the balance
		credit, err = l.GetOrCreateBalance(c.Request.Context(), username)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": "Failed to fetch credits"})
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, credit, 60*time.Second)   // Cache the balance for 60 seconds
		c.JSON(http.StatusOK, gin.H{"credits": credit, "cached": false}) // Return balance info
	}
}

// GetTransactionHistoryHandler returns the authenticated user's transaction log
func GetTransactionHistoryHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetString("username") // Account ID from the JWT claims
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			// Convert page to integer
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			// Convert page_size to integer
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		offset := (page - 1) * pageSize // Calculate offset
		kind := c.Query("kind")         // Optional kind filter
		// Redis cache key
		cacheKey := "txhistory:user:" + username + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize) + ":kind:" + kind
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.CreditTransaction `json:"transactions"` // List of transactions
			Page         int                        `json:"page"`         // Current page
			PageSize     int                        `json:"page_size"`    // Page size
			Total        int64                      `json:"total"`        // Total transactions
			TotalPages   int                        `json:"total_pages"`  // Total pages
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // Cached transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,
			})
			return
		}
		txs, total, err := l.Transactions(c.Request.Context(), username, kind, pageSize, offset)
		if err != nil {
			// If fetching fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		// Calculate total pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": txs,        // List of transactions
			"page":         page,       // Current page
			"page_size":    pageSize,   // Page size
			"total":        total,      // Total transactions
			"total_pages":  totalPages, // Total pages
			"cached":       false,      // Not from cache
		}
		// Cache the result for 60 seconds
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}

// invalidateUserCaches drops the balance and transaction history cache for a
// user after a committed mutation (simple version: delete first 5 pages)
func invalidateUserCaches(ctx context.Context, rdb *redis.Client, username string) {
	keys := []string{"credits:user:" + username} // Balance cache key
	txPrefix := "txhistory:user:" + username     // Transaction history prefix
	for i := 1; i <= 5; i++ {
		// Unfiltered history pages only
		keys = append(keys, txPrefix+":page:"+strconv.Itoa(i)+":size:20:kind:")
	}
	_ = utils.DeleteCacheKeys(ctx, rdb, keys...) // Invalidate in one round trip
}
