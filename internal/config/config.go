package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
	"github.com/sysu-ecnc-dev/timetabler/backend/internal/domain"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		MaxBodyBytes    int64  `env:"MAX_BODY_BYTES" envDefault:"4194304"` // 4 MB，排课配置可能比较大
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD" envDefault:"timetabler"`
		} `envPrefix:"USER_"`
		EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"mail2.sysu.edu.cn"`
	} `envPrefix:"SEED_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Email struct {
		SMTP struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		ProgressExpiration  int    `env:"PROGRESS_EXPIRATION" envDefault:"86400"` // 1 天
	} `envPrefix:"REDIS_"`
	Optimizer struct {
		Days                    int     `env:"DAYS" envDefault:"5"`
		DayHours                int     `env:"DAY_HOURS" envDefault:"12"`
		PopulationSize          int     `env:"POPULATION_SIZE" envDefault:"100"`
		MaxGenerations          int     `env:"MAX_GENERATIONS" envDefault:"5000"`
		MinFitness              float64 `env:"MIN_FITNESS" envDefault:"0.999"`
		MaxRepeat               int     `env:"MAX_REPEAT" envDefault:"9999"`
		NumberOfCrossoverPoints int     `env:"CROSSOVER_POINTS" envDefault:"2"`
		MutationSize            int     `env:"MUTATION_SIZE" envDefault:"2"`
		CrossoverProbability    float64 `env:"CROSSOVER_PROBABILITY" envDefault:"80"`
		MutationProbability     float64 `env:"MUTATION_PROBABILITY" envDefault:"3"`
		CrossoverMode           string  `env:"CROSSOVER_MODE" envDefault:"kpoint"`
		ScaleFactor             float64 `env:"SCALE_FACTOR" envDefault:"0.5"`
		Seed                    int64   `env:"SEED" envDefault:"0"` // 0 表示使用当前时间
	} `envPrefix:"OPTIMIZER_"`
	Worker struct {
		Concurrency int `env:"CONCURRENCY" envDefault:"2"`
		RunTimeout  int `env:"RUN_TIMEOUT" envDefault:"3600"` // 单次排课的最长时间，单位：秒
	} `envPrefix:"WORKER_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

// DefaultOptimizerParameters 返回配置中的默认算法参数，接口提交的参数会覆盖其中非零的部分
func (cfg *Config) DefaultOptimizerParameters() domain.OptimizerParameters {
	o := cfg.Optimizer
	return domain.OptimizerParameters{
		PopulationSize:          o.PopulationSize,
		MaxGenerations:          o.MaxGenerations,
		MinFitness:              o.MinFitness,
		MaxRepeat:               o.MaxRepeat,
		NumberOfCrossoverPoints: o.NumberOfCrossoverPoints,
		MutationSize:            o.MutationSize,
		CrossoverProbability:    o.CrossoverProbability,
		MutationProbability:     o.MutationProbability,
		CrossoverMode:           o.CrossoverMode,
		ScaleFactor:             o.ScaleFactor,
		Seed:                    o.Seed,
	}
}
