package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/logger"
	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Command-line flags
var (
	contactsCount = flag.Int("contacts", 12, "Number of contacts to create")
	enrollAll     = flag.Bool("enroll", false, "Enroll every seeded contact in the onboarding sequence")
	clearData     = flag.Bool("clear", false, "Remove the demo workspace before inserting")
	showHelp      = flag.Bool("help", false, "Show usage information")
)

// Seed ids are derived from fixed names so reruns hit the same rows
var demoWorkspaceID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("inboxpilot:demo-workspace"))

type seedStep struct {
	subject   string
	body      string
	delayDays int
}

type seedSequence struct {
	name     string
	isActive bool
	steps    []seedStep
}

var sequences = []seedSequence{
	{
		name:     "Onboarding",
		isActive: true,
		steps: []seedStep{
			{"Welcome aboard, {{first_name}}", "Hi {{first_name}},\n\nThanks for signing up. Reply to this email if {{company}} needs a hand getting started.", 0},
			{"Getting the most out of InboxPilot", "Hi {{ first_name }},\n\nHere are three things teams like {{company}} set up in their first week.", 3},
			{"How is it going, {{first_name}}?", "Hi {{first_name}},\n\nJust checking in. Anything we can help with?", 5},
		},
	},
	{
		name:     "Webinar follow-up",
		isActive: true,
		steps: []seedStep{
			{"Thanks for joining, {{full_name}}", "Hi {{first_name}},\n\nThe recording is attached. As {{title}} at {{company}}, you might like the Q&A at minute 40.", 1},
		},
	},
	{
		name:     "Winback (paused)",
		isActive: false,
		steps: []seedStep{
			{"We miss you at {{company}}", "Hi {{first_name}}, it has been a while.", 0},
		},
	},
}

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Load .env file (ignore error if not present)
	_ = godotenv.Load()

	printInfo("=== InboxPilot Database Seeder ===\n")

	cfg, err := config.Load()
	if err != nil {
		printError(fmt.Sprintf("Failed to load configuration: %v", err))
		os.Exit(1)
	}

	ctx := context.Background()

	printInfo("Connecting to database...")
	db, err := database.Open(ctx, cfg)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	defer db.Close()
	printSuccess("✓ Connected to database\n")

	if *clearData {
		if err := clearSeedData(ctx, db); err != nil {
			printError(fmt.Sprintf("Failed to clear seed data: %v", err))
			os.Exit(1)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO workspaces (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		demoWorkspaceID, "Demo workspace",
	); err != nil {
		printError(fmt.Sprintf("Failed to create workspace: %v", err))
		os.Exit(1)
	}

	contacts, err := seedContacts(ctx, repository.NewContactRepository(db), *contactsCount)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed contacts: %v", err))
		os.Exit(1)
	}

	sequenceIDs, err := seedSequences(ctx, db)
	if err != nil {
		printError(fmt.Sprintf("Failed to seed sequences: %v", err))
		os.Exit(1)
	}

	enrolled := 0
	if *enrollAll {
		log := logger.New(cfg, "seed")
		enrollments := service.NewEnrollmentService(
			repository.NewSequenceRepository(db),
			repository.NewContactRepository(db),
			repository.NewEnrollmentRepository(db),
			repository.NewEmailRepository(db),
			audit.NewStoreSink(repository.NewActivityRepository(db), log),
			log,
		)
		enrolled, err = enrollContacts(ctx, enrollments, sequenceIDs[0], contacts)
		if err != nil {
			printError(fmt.Sprintf("Failed to enroll contacts: %v", err))
			os.Exit(1)
		}
	}

	printInfo("\n=== Seeding Summary ===")
	printSuccess(fmt.Sprintf("✓ Workspace: %s", demoWorkspaceID))
	printSuccess(fmt.Sprintf("✓ Contacts: %d", len(contacts)))
	printSuccess(fmt.Sprintf("✓ Sequences: %d", len(sequenceIDs)))
	if *enrollAll {
		printSuccess(fmt.Sprintf("✓ Enrollments created: %d", enrolled))
	}
	printInfo("\nSeeding completed successfully!")
}

// clearSeedData removes the demo workspace; everything else cascades
func clearSeedData(ctx context.Context, db *sql.DB) error {
	printWarning("Clearing existing seed data...")

	if _, err := db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, demoWorkspaceID); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	printSuccess("✓ Seed data cleared\n")
	return nil
}

// seedContacts creates contacts with a spread of optional fields and
// statuses. Existing contacts are kept.
func seedContacts(ctx context.Context, repo repository.ContactRepository, count int) ([]*models.Contact, error) {
	printInfo(fmt.Sprintf("Seeding %d contacts...", count))

	firstNames := []string{"Amara", "Bruno", "Chen", "Dalia", "Emeka", "Freya", "Goran", "Hana", "Ivan", "Jonas", "Keiko", "Lena"}
	lastNames := []string{"Okafor", "Silva", "Wei", "Haddad", "Eze", "Larsen", "Petrov", "Sato", "Novak", "Berg", "Tanaka", "Vogel"}
	companies := []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries"}
	titles := []string{"Head of Growth", "CTO", "Marketing Lead", "Founder", "Sales Director"}

	var contacts []*models.Contact
	created := 0
	for i := 1; i <= count; i++ {
		email := fmt.Sprintf("contact%03d@example.com", i)
		contact := &models.Contact{
			ID:          uuid.NewSHA1(demoWorkspaceID, []byte(email)),
			WorkspaceID: demoWorkspaceID,
			Email:       email,
			Status:      models.ContactStatusActive,
		}

		if i%10 != 1 {
			contact.FirstName = stringPtr(firstNames[i%len(firstNames)])
		}
		if i%3 != 0 {
			contact.LastName = stringPtr(lastNames[i%len(lastNames)])
		}
		if i%4 != 0 {
			contact.Company = stringPtr(companies[i%len(companies)])
		}
		if i%5 != 0 {
			contact.Title = stringPtr(titles[i%len(titles)])
		}
		switch i % 11 {
		case 7:
			contact.Status = models.ContactStatusUnsubscribed
		case 9:
			contact.Status = models.ContactStatusBounced
		}

		err := repo.Create(ctx, contact)
		switch {
		case err == nil:
			created++
		case !errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("failed to insert contact %s: %w", email, err)
		}
		contacts = append(contacts, contact)
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d contacts (skipped %d existing)", created, count-created))
	return contacts, nil
}

// seedSequences inserts the demo sequences and their steps
func seedSequences(ctx context.Context, db *sql.DB) ([]uuid.UUID, error) {
	printInfo(fmt.Sprintf("Seeding %d sequences...", len(sequences)))

	var ids []uuid.UUID
	for _, seq := range sequences {
		id := uuid.NewSHA1(demoWorkspaceID, []byte("sequence:"+seq.name))

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sequences (id, workspace_id, name, is_active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, id, demoWorkspaceID, seq.name, seq.isActive); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert sequence %s: %w", seq.name, err)
		}

		for i, step := range seq.steps {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sequence_steps (id, sequence_id, step_order, subject_template, body_template, delay_days)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (sequence_id, step_order) DO NOTHING
			`, uuid.New(), id, i+1, step.subject, step.body, step.delayDays); err != nil {
				tx.Rollback()
				return nil, fmt.Errorf("failed to insert step %d of %s: %w", i+1, seq.name, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit sequence %s: %w", seq.name, err)
		}
		ids = append(ids, id)
	}

	printSuccess(fmt.Sprintf("✓ Seeded %d sequences", len(ids)))
	return ids, nil
}

// enrollContacts enrolls every contact, skipping ones already enrolled
func enrollContacts(ctx context.Context, enrollments *service.EnrollmentService, sequenceID uuid.UUID, contacts []*models.Contact) (int, error) {
	printInfo(fmt.Sprintf("Enrolling %d contacts...", len(contacts)))

	actor := models.Actor{WorkspaceID: demoWorkspaceID}
	created := 0
	for _, contact := range contacts {
		_, err := enrollments.Enroll(ctx, actor, sequenceID, contact.ID)
		var conflict *service.ConflictError
		switch {
		case err == nil:
			created++
		case errors.As(err, &conflict):
		default:
			return created, fmt.Errorf("failed to enroll %s: %w", contact.Email, err)
		}
	}

	printSuccess(fmt.Sprintf("✓ Enrolled %d contacts (skipped %d existing)", created, len(contacts)-created))
	return created, nil
}

func stringPtr(s string) *string {
	return &s
}

func printSuccess(msg string) {
	fmt.Printf("%s%s%s\n", colorGreen, msg, colorReset)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", colorRed, msg, colorReset)
}

func printInfo(msg string) {
	fmt.Printf("%s%s%s\n", colorCyan, msg, colorReset)
}

func printWarning(msg string) {
	fmt.Printf("%s%s%s\n", colorYellow, msg, colorReset)
}

func printUsage() {
	printInfo("=== InboxPilot Database Seeder ===\n")
	fmt.Println("Usage: seed [flags]")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  seed")
	fmt.Println("  seed -contacts=50 -enroll")
	fmt.Println("  seed -clear -enroll")
}
