// 包 config：从环境变量与 .env 文件读取运行配置
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"ip-geolocation/internal/builder"
	"ip-geolocation/internal/source"

	"github.com/joho/godotenv"
)

// Postgres：导出库连接参数，变量名沿用 PG_*
type Postgres struct {
	Host         string
	Port         string
	User         string
	Password     string
	DB           string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// DSN：拼接 postgres:// 连接串；密码为空时省略
func (p Postgres) DSN() string {
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	dsn += "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
	return dsn
}

type Redis struct {
	Addr string
	Pass string
	DB   int
	Key  string
}

type Config struct {
	OperatorDir    string
	CityDir        string
	OperatorFilter source.DirFilter
	CityFilter     source.DirFilter

	OutputCSV string
	OutputLog string

	Policy        builder.Policy
	WalkWorkers   int
	AuditOverlaps bool

	CoarseMMDBPath   string
	CoarseMMDBLabels source.ASNLabel
	CoarseMMDBOnly   bool

	ExportPG  bool
	SourceTag string
	PG        Postgres

	ExportRedis bool
	Redis       Redis

	MetricsTextfile string
	IP2RegionPath   string
}

// LoadDotenv：依次加载 .env 与 data/env/.env，已存在的环境变量不被覆盖；文件缺失忽略
func LoadDotenv() {
	_ = godotenv.Load()
	_ = godotenv.Load("data/env/.env")
}

// 文档注释：读取全部配置项
// 约束：数值与布尔解析失败视为配置错误直接返回，不静默回退；未设置的项使用默认值。
func Load() (*Config, error) {
	c := &Config{
		OperatorDir: env("OPERATOR_DIR", "data/operator"),
		CityDir:     env("CITY_DIR", "data/cncity"),
		OperatorFilter: source.DirFilter{
			Ext:     ".txt",
			Include: list(env("OPERATOR_FILTER", "cernet,cmcc,unicom,chinanet")),
			Exclude: list(env("OPERATOR_EXCLUDE", "6")),
		},
		CityFilter:      source.DirFilter{Ext: ".txt"},
		OutputCSV:       env("OUTPUT_CSV", "ip-geolocation.csv"),
		OutputLog:       env("OUTPUT_LOG", "ip-geolocation.log"),
		CoarseMMDBPath:  os.Getenv("COARSE_MMDB_PATH"),
		SourceTag:       env("EXPORT_SOURCE_TAG", "default"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),
		IP2RegionPath:   os.Getenv("IP2REGION_V4_PATH"),
		PG: Postgres{
			Host:     env("PG_HOST", "localhost"),
			Port:     env("PG_PORT", "5432"),
			User:     env("PG_USER", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			DB:       env("PG_DB", "ipgeo"),
			SSLMode:  env("PG_SSLMODE", "disable"),
		},
		Redis: Redis{
			Addr: env("REDIS_HOST", "127.0.0.1") + ":" + env("REDIS_PORT", "6379"),
			Pass: os.Getenv("REDIS_PASS"),
			Key:  env("REDIS_KEY", "geo:ranges"),
		},
	}
	var err error
	if c.Policy, err = builder.ParsePolicy(env("PARSE_POLICY", "strict")); err != nil {
		return nil, err
	}
	if c.WalkWorkers, err = intEnv("WALK_WORKERS", 1); err != nil {
		return nil, err
	}
	if c.AuditOverlaps, err = boolEnv("AUDIT_OVERLAPS", false); err != nil {
		return nil, err
	}
	if c.CoarseMMDBOnly, err = boolEnv("COARSE_MMDB_ONLY", false); err != nil {
		return nil, err
	}
	if c.CoarseMMDBLabels, err = ParseASNLabels(os.Getenv("COARSE_MMDB_LABELS")); err != nil {
		return nil, err
	}
	if c.ExportPG, err = boolEnv("EXPORT_PG", false); err != nil {
		return nil, err
	}
	if c.PG.MaxOpenConns, err = intEnv("PG_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if c.PG.MaxIdleConns, err = intEnv("PG_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if c.ExportRedis, err = boolEnv("EXPORT_REDIS", false); err != nil {
		return nil, err
	}
	if c.Redis.DB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseASNLabels：解析 "4134:chinanet,9808:cmcc" 形式的映射
func ParseASNLabels(s string) (source.ASNLabel, error) {
	out := source.ASNLabel{}
	for _, item := range list(s) {
		num, label, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("COARSE_MMDB_LABELS: bad item %q", item)
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(num), "AS"), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("COARSE_MMDB_LABELS: bad asn %q: %w", num, err)
		}
		out[uint(n)] = strings.TrimSpace(label)
	}
	return out, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func list(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
