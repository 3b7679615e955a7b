// Command createadmin provisions an administrator account from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chesslessons/backend/internal/config"
	domain "chesslessons/backend/internal/domain/auth"
	"chesslessons/backend/internal/infrastructure/notify"
	"chesslessons/backend/internal/infrastructure/password"
	"chesslessons/backend/internal/infrastructure/postgres"
	"chesslessons/backend/internal/infrastructure/revocation"
	"chesslessons/backend/internal/infrastructure/token"
	"chesslessons/backend/internal/obs"
	authusecase "chesslessons/backend/internal/usecase/auth"

	"golang.org/x/term"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := obs.SetupLogger(cfg.LogLevel, "console", os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run database migrations")
	}

	tokenManager, err := token.NewJWTManager(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure token manager")
	}
	svc := authusecase.NewService(
		postgres.NewUserRepository(db.Pool),
		tokenManager,
		password.NewBcryptHasher(cfg.BcryptCost),
		revocation.NewMemoryStore(),
		notify.NewLogNotifier(logger),
		authusecase.WithLogger(logger),
	)

	input, err := prompt(bufio.NewReader(os.Stdin))
	if err != nil {
		logger.Fatal().Err(err).Msg("reading admin credentials")
	}

	user, err := svc.CreateAccount(ctx, input, true)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			logger.Fatal().Str("email", input.Email).Msg("a user with this email already exists")
		}
		logger.Fatal().Err(err).Msg("creating admin account")
	}
	fmt.Printf("admin %s created (id %s)\n", user.Email, user.ID)
}

func prompt(in *bufio.Reader) (authusecase.RegisterInput, error) {
	fmt.Print("Email: ")
	email, err := in.ReadString('\n')
	if err != nil {
		return authusecase.RegisterInput{}, err
	}

	pw, err := readSecret("Password: ")
	if err != nil {
		return authusecase.RegisterInput{}, err
	}
	confirm, err := readSecret("Confirm password: ")
	if err != nil {
		return authusecase.RegisterInput{}, err
	}
	if pw != confirm {
		return authusecase.RegisterInput{}, errors.New("passwords do not match")
	}

	return authusecase.RegisterInput{
		Email:      strings.TrimSpace(email),
		Password:   pw,
		ChessLevel: string(domain.LevelMaster),
	}, nil
}

func readSecret(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
