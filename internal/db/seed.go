package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo users,
// swipes (including guaranteed mutual pairs), matched direct threads,
// gym threads for each allow-listed title, one crew thread, and a few
// messages so unread indicators light up immediately.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	tables := []string{"messages", "thread_participants", "threads", "matches", "swipes", "device_tokens", "users"}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		for _, table := range tables {
			db.Exec(fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = 1", table))
		}
	case "sqlite":
		for _, table := range tables {
			db.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table)
		}
	}

	log.Println("Cleared existing data")

	// --- Seed Users ---
	for i := 1; i <= 12; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := User{
			Username:     fmt.Sprintf("climber%d", i),
			Email:        fmt.Sprintf("climber%d@example.com", i),
			PasswordHash: string(hash),
			DisplayName:  fmt.Sprintf("Climber %d", i),
			Active:       true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		token := DeviceToken{UserID: user.ID, Token: fmt.Sprintf("device-%d-primary", user.ID)}
		if err := db.Create(&token).Error; err != nil {
			return fmt.Errorf("failed to seed device token: %w", err)
		}
	}
	log.Println("Seeded 12 users.")

	// --- Seed Swipes (~60, every 3rd pair mutual) ---
	counter := 0
	for actorID := uint64(1); actorID <= 12; actorID++ {
		for j := 0; j < 5; j++ {
			targetID := uint64(r.Intn(12) + 1)
			if actorID == targetID {
				continue
			}

			action := SwipeActionPass
			if r.Intn(100) < 70 {
				action = SwipeActionLike
			}

			if counter%3 == 0 {
				action = SwipeActionLike
				recip := Swipe{ActorID: targetID, TargetID: actorID, Action: SwipeActionLike}
				if err := db.Create(&recip).Error; err != nil {
					return fmt.Errorf("failed to seed reciprocal swipe: %w", err)
				}
			}

			swipe := Swipe{ActorID: actorID, TargetID: targetID, Action: action}
			if err := db.Create(&swipe).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}
			counter++
		}
	}
	log.Printf("Seeded %d swipes.", counter)

	// --- Materialize matches and direct threads for mutual likes ---
	var likes []Swipe
	if err := db.Where("action = ?", SwipeActionLike).Find(&likes).Error; err != nil {
		return err
	}
	liked := make(map[[2]uint64]bool, len(likes))
	for _, s := range likes {
		liked[[2]uint64{s.ActorID, s.TargetID}] = true
	}
	matched := 0
	for pair := range liked {
		a, b := pair[0], pair[1]
		if a >= b || !liked[[2]uint64{b, a}] {
			continue
		}
		match := Match{UserA: a, UserB: b}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
			DoNothing: true,
		}).Create(&match).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
		if match.ID == 0 {
			continue
		}
		ua, ub := match.UserA, match.UserB
		thread := Thread{Type: ThreadTypeDirect, MatchID: &match.ID, UserA: &ua, UserB: &ub}
		if err := db.Create(&thread).Error; err != nil {
			return fmt.Errorf("failed to seed direct thread: %w", err)
		}

		body := "Psyched to climb together, when are you at the gym next?"
		msg := Message{ThreadID: thread.ID, SenderID: ua, ReceiverID: &ub, Body: body, Status: MessageStatusSent}
		if err := db.Create(&msg).Error; err != nil {
			return fmt.Errorf("failed to seed message: %w", err)
		}
		now := msg.CreatedAt
		db.Model(&Thread{}).Where("id = ?", thread.ID).
			Updates(map[string]any{"last_message": body, "last_message_at": &now})
		matched++
	}
	log.Printf("Seeded %d matches with direct threads.", matched)

	// --- Gym threads for every allow-listed title ---
	gymID := uint64(1)
	for _, title := range []string{"general", "beta center", "routesetting"} {
		thread := Thread{Type: ThreadTypeGym, GymID: &gymID, Title: title}
		if err := db.Create(&thread).Error; err != nil {
			return fmt.Errorf("failed to seed gym thread: %w", err)
		}
		for userID := uint64(1); userID <= 6; userID++ {
			p := ThreadParticipant{ThreadID: thread.ID, UserID: userID}
			if err := db.Create(&p).Error; err != nil {
				return fmt.Errorf("failed to seed participant: %w", err)
			}
		}
	}

	// --- One crew thread ---
	crewID := uint64(1)
	crew := Thread{Type: ThreadTypeCrew, CrewID: &crewID, Title: "Send Squad"}
	if err := db.Create(&crew).Error; err != nil {
		return fmt.Errorf("failed to seed crew thread: %w", err)
	}
	for userID := uint64(1); userID <= 4; userID++ {
		p := ThreadParticipant{ThreadID: crew.ID, UserID: userID}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to seed crew participant: %w", err)
		}
	}
	log.Println("Seeded gym and crew threads.")

	return nil
}
