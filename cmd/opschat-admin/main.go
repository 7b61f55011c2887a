// Command opschat-admin seeds an installation: it creates or promotes
// an admin account and installs the default role set.
package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/opschat/opschat/pkg/apperr"
	"github.com/opschat/opschat/pkg/auth"
	"github.com/opschat/opschat/pkg/config"
	"github.com/opschat/opschat/pkg/rbac"
)

func main() {
	email := flag.String("email", "", "Admin account email")
	password := flag.String("password", "", "Admin account password")
	name := flag.String("name", "Admin", "Admin account display name")
	skipRoles := flag.Bool("skip-roles", false, "Do not install the default roles")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *email == "" || *password == "" {
		log.Fatal("-email and -password are required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("database unreachable")
	}

	if err := ensureAdmin(ctx, db, cfg, *email, *password, *name, log); err != nil {
		log.WithError(err).Fatal("failed to create admin user")
	}

	if !*skipRoles {
		if err := installDefaultRoles(ctx, db, log); err != nil {
			log.WithError(err).Fatal("failed to install default roles")
		}
	}
}

func ensureAdmin(ctx context.Context, db *sql.DB, cfg *config.Config, email, password, name string, log *logrus.Logger) error {
	users := auth.NewStore(db)

	existing, err := users.GetUserByEmail(ctx, email)
	if err == nil {
		if existing.IsAdmin {
			log.WithField("email", email).Info("user is already an admin")
			return nil
		}
		if err := users.SetAdmin(ctx, existing.ID, true); err != nil {
			return err
		}
		log.WithField("email", email).Info("existing user promoted to admin")
		return nil
	}
	if !apperr.IsNotFound(err) {
		return err
	}

	hashed, err := auth.NewPasswordHasher(cfg.Auth.BcryptCost).Hash(password)
	if err != nil {
		return err
	}
	user := &auth.User{
		Name:            name,
		Email:           email,
		HashedPassword:  hashed,
		IsAdmin:         true,
		IsAuthenticated: true,
		IsActive:        true,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"email": email, "id": user.ID}).Info("admin user created")
	return nil
}

func installDefaultRoles(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	store := rbac.NewStore(db)

	defaults := []rbac.Role{
		{Name: "Admin", Description: "Full system access"},
		{Name: "User", Description: "Standard user access"},
		{Name: "Viewer", Description: "Read-only access"},
	}
	for _, role := range defaults {
		err := store.CreateRole(ctx, &role)
		if apperr.IsConflict(err) {
			log.WithField("role", role.Name).Debug("role already exists")
			continue
		}
		if err != nil {
			return err
		}
		log.WithField("role", role.Name).Info("role created")
	}
	return nil
}
