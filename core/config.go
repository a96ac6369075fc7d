package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		Build            string
		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string
		WorkDir          string

		Server   ServerConfig
		Database DatabaseConfig
		Google   GoogleConfig
		OpenAI   OpenAIConfig
		Grading  GradingConfig
	}

	ServerConfig struct {
		Addr            string
		DebugAddr       string
		CookieName      string
		UpstreamTimeout time.Duration
		ShutdownTimeout time.Duration
		SessionTTL      time.Duration
		AuthTokenTTL    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GoogleConfig struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
		Scopes       []string
	}

	OpenAIConfig struct {
		Endpoint   string
		APIKey     string
		APIVersion string
		Deployment string
	}

	GradingConfig struct {
		// LetterScale maps letters to minimum percentages, highest first,
		// e.g. "A:90,B:80,C:70,D:60"; anything below the last cutoff gets FallbackLetter.
		LetterScale         string
		FallbackLetter      string
		FuzzyMatchThreshold float64
	}
)

func (dc DatabaseConfig) Address() string {
	return dc.Host + ":" + dc.Port
}

func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("build", "dev")
	conf.SetDefault("secretKey", "w#0q(t&8keu13-p^zi&0@e+jxnbv$d7ryg05k3*bhx1sx4!d0m")
	conf.SetDefault("frontendBaseURL", "http://localhost:5173")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")

	conf.SetDefault("serverAddr", ":8000")
	conf.SetDefault("serverDebugAddr", ":4000")
	conf.SetDefault("serverCookieName", "darasa_session")
	conf.SetDefault("serverUpstreamTimeout", time.Minute)
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("serverSessionTTL", 7*24*time.Hour)
	conf.SetDefault("serverAuthTokenTTL", 10*time.Minute)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseName", "darasa")
	conf.SetDefault("databaseUser", "")
	conf.SetDefault("databasePassword", "")
	conf.SetDefault("databaseAdminUser", "")
	conf.SetDefault("databaseAdminPassword", "")
	conf.SetDefault("databaseDisableTLS", true)

	conf.SetDefault("googleClientID", "")
	conf.SetDefault("googleClientSecret", "")
	conf.SetDefault("googleRedirectURL", "http://localhost:8000/api/auth/google/callback")
	conf.SetDefault("googleScopes", []string{
		"https://www.googleapis.com/auth/userinfo.email",
		"https://www.googleapis.com/auth/classroom.courses.readonly",
		"https://www.googleapis.com/auth/classroom.coursework.students",
		"https://www.googleapis.com/auth/classroom.rosters.readonly",
		"https://www.googleapis.com/auth/drive.readonly",
	})

	conf.SetDefault("openaiEndpoint", "")
	conf.SetDefault("openaiAPIKey", "")
	conf.SetDefault("openaiAPIVersion", "2024-02-01")
	conf.SetDefault("openaiDeployment", "gpt-4o")

	conf.SetDefault("gradingLetterScale", "A:90,B:80,C:70,D:60")
	conf.SetDefault("gradingFallbackLetter", "F")
	conf.SetDefault("gradingFuzzyMatchThreshold", 0.6)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:          conf.GetString("appName"),
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         env == "TEST",
		Build:            conf.GetString("build"),
		SecretKey:        []byte(conf.GetString("secretKey")),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Address: conf.GetString("defaultFromEmail")},
		SendgridAPIKey:   conf.GetString("sendgridAPIKey"),
		RollbarToken:     conf.GetString("rollbarToken"),
		WorkDir:          wd,
		Server: ServerConfig{
			Addr:            conf.GetString("serverAddr"),
			DebugAddr:       conf.GetString("serverDebugAddr"),
			CookieName:      conf.GetString("serverCookieName"),
			UpstreamTimeout: conf.GetDuration("serverUpstreamTimeout"),
			ShutdownTimeout: conf.GetDuration("serverShutdownTimeout"),
			SessionTTL:      conf.GetDuration("serverSessionTTL"),
			AuthTokenTTL:    conf.GetDuration("serverAuthTokenTTL"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			Name:          conf.GetString("databaseName"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
		Google: GoogleConfig{
			ClientID:     conf.GetString("googleClientID"),
			ClientSecret: conf.GetString("googleClientSecret"),
			RedirectURL:  conf.GetString("googleRedirectURL"),
			Scopes:       conf.GetStringSlice("googleScopes"),
		},
		OpenAI: OpenAIConfig{
			Endpoint:   conf.GetString("openaiEndpoint"),
			APIKey:     conf.GetString("openaiAPIKey"),
			APIVersion: conf.GetString("openaiAPIVersion"),
			Deployment: conf.GetString("openaiDeployment"),
		},
		Grading: GradingConfig{
			LetterScale:         conf.GetString("gradingLetterScale"),
			FallbackLetter:      conf.GetString("gradingFallbackLetter"),
			FuzzyMatchThreshold: conf.GetFloat64("gradingFuzzyMatchThreshold"),
		},
	}
}
