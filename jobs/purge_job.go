package jobs

import (
	"context"
	"log"
	"strconv"
	"time"

	config "github.com/mindmates/backend/configs"
	"github.com/mindmates/backend/database"
	"github.com/mindmates/backend/store"
)

const defaultRetentionDays = 30

// PurgeDeletedMessages permanently removes soft-deleted messages older than
// the retention window. Soft delete keeps rows around for the live history
// queries to skip; this job is what finally reclaims them.
func PurgeDeletedMessages() {
	log.Println("Running job: PurgeDeletedMessages...")

	retentionDays := defaultRetentionDays
	if v := config.Config("MESSAGE_RETENTION_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			retentionDays = parsed
		}
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	ctx := context.Background()
	messages := store.NewMessageStore(database.DB)
	communities := store.NewCommunityStore(database.DB)

	purgedDirect, err := messages.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Error purging deleted messages: %v", err)
	}
	purgedCommunity, err := communities.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		log.Printf("Error purging deleted community messages: %v", err)
	}

	if purgedDirect+purgedCommunity > 0 {
		log.Printf("Purged %d direct and %d community message(s) deleted before %s.",
			purgedDirect, purgedCommunity, cutoff.Format("2006-01-02"))
	}
}
