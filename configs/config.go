package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int

	JWTSecret string

	SuperAdminEmail    string
	SuperAdminPassword string

	// Kakao notification settings
	KakaoAdminKey           string
	KakaoClientID           string
	KakaoClientSecret       string
	TaskStatusTemplateID    string
	TaskReminderTemplateID  string
	TaskScheduleTemplateID  string
	NotificationTestMode    bool
	ReminderLookaheadHours  int
	EnableReminderScheduler bool
}

func LoadConfig() Config {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	dbPort, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		dbPort = 5432
	}

	redisPort, err := strconv.Atoi(os.Getenv("REDIS_PORT"))
	if err != nil {
		redisPort = 6379
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 3004
	}

	reminderHours, err := strconv.Atoi(os.Getenv("REMINDER_HOURS_BEFORE"))
	if err != nil || reminderHours <= 0 {
		reminderHours = 3
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "secret"
	}

	return Config{
		Environment: env,
		Port:        port,

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     dbPort,
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  os.Getenv("REDIS_HOST"),
		RedisPort:  redisPort,

		JWTSecret: secret,

		SuperAdminEmail:    os.Getenv("SUPER_ADMIN_EMAIL"),
		SuperAdminPassword: os.Getenv("SUPER_ADMIN_PASSWORD"),

		KakaoAdminKey:           os.Getenv("KAKAO_ADMIN_KEY"),
		KakaoClientID:           os.Getenv("KAKAO_CLIENT_ID"),
		KakaoClientSecret:       os.Getenv("KAKAO_CLIENT_SECRET"),
		TaskStatusTemplateID:    os.Getenv("KAKAO_TASK_STATUS_TEMPLATE_ID"),
		TaskReminderTemplateID:  os.Getenv("KAKAO_TASK_REMINDER_TEMPLATE_ID"),
		TaskScheduleTemplateID:  os.Getenv("KAKAO_TASK_SCHEDULE_CHANGE_TEMPLATE_ID"),
		NotificationTestMode:    os.Getenv("NOTIFICATION_TEST_MODE") == "true",
		ReminderLookaheadHours:  reminderHours,
		EnableReminderScheduler: os.Getenv("ENABLE_SCHEDULER") == "true",
	}
}

// IsProduction reports whether the app runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
