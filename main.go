package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/grexie/estorage/pkg/api"
	"github.com/grexie/estorage/pkg/auth"
	"github.com/grexie/estorage/pkg/encryptor"
	"github.com/grexie/estorage/pkg/estorage"
	"github.com/grexie/estorage/pkg/storage"
	"github.com/grexie/estorage/pkg/tls"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func loadEnv(filenames ...string) {
	for _, filename := range filenames {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			godotenv.Load(filename)
		}
	}
}

func envOr(name string, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(name string, fallback int) (int, error) {
	v := envOr(name, "")
	if v == "" {
		return fallback, nil
	}
	if i, err := strconv.Atoi(v); err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	} else {
		return i, nil
	}
}

func storageConfig() (estorage.Config, error) {
	var c estorage.Config
	var err error

	if c.SaltRounds, err = envInt("ESTORAGE_SALT_ROUNDS", estorage.DefaultSaltRounds); err != nil {
		return c, err
	} else if c.VerifyCacheSize, err = envInt("ESTORAGE_VERIFY_CACHE_SIZE", 1024); err != nil {
		return c, err
	}
	return c, nil
}

func main() {
	if _, ok := os.LookupEnv("ENV"); !ok {
		env := "development"
		os.Setenv("ENV", env)
	}
	loadEnv(".env."+os.Getenv("ENV")+".local", ".env."+os.Getenv("ENV"), ".env.local", ".env")

	addr := fmt.Sprintf("%s:%s", envOr("HOST", "127.0.0.1"), envOr("PORT", "5090"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if auth, err := auth.NewAuth(); err != nil {
		log.Fatal(err)
	} else if creds, err := encryptor.CredentialsFromEnv(); err != nil {
		log.Fatal(err)
	} else if enc, err := encryptor.NewEncryptor(creds); err != nil {
		log.Fatal(err)
	} else if config, err := storageConfig(); err != nil {
		log.Fatal(err)
	} else if backend, err := storage.NewStorage(ctx); err != nil {
		log.Fatal(err)
	} else if estorage, err := estorage.NewEncryptedStorage(backend, enc, config); err != nil {
		log.Fatal(err)
	} else if api, err := api.NewAPI(auth, estorage); err != nil {
		log.Fatal(err)
	} else {
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		app.Use(logger.New())

		app.Mount("/", api.App())

		go func() {
			<-ctx.Done()
			log.Info("shutting down...")
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				log.Errorf("error shutting down api: %v", err)
			}
		}()

		if os.Getenv("ESTORAGE_INSECURE_HTTP") == "true" {
			log.Infof("🚀 started estorage %s on %s", versioninfo.Short(), addr)
			err = app.Listen(addr)
		} else if cert, certErr := tls.ServerCertificate(); certErr != nil {
			err = fmt.Errorf("error creating tls certificate: %w", certErr)
		} else {
			log.Infof("🚀 started estorage %s on %s", versioninfo.Short(), addr)
			err = app.ListenTLSWithCertificate(addr, cert)
		}

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := backend.Close(closeCtx); closeErr != nil {
			log.Errorf("error closing storage backend: %v", closeErr)
		}

		if err != nil {
			log.Fatal(err)
		}
		log.Info("shutdown")
	}
}
