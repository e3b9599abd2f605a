// Package config는 런타임에 변경 가능한 설정 값을 viper로 관리합니다.
// 서비스 부팅 설정(YAML)과 달리 파일이 바뀌면 재배포 없이 반영됩니다.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	GetString(key string) string
	GetBool(key string) bool
	IsSet(key string) bool
	GetAll() map[string]interface{}
}

// viperConfig는 viper를 사용하여 Config 인터페이스를 구현합니다.
// viper 인스턴스는 동시 사용에 안전하지 않으므로, 읽기는 항상 발행된 스냅샷에서
// 이루어지고 변경 시에는 새 인스턴스를 만들어 교체합니다.
type viperConfig struct {
	current atomic.Pointer[viper.Viper]
}

func (c *viperConfig) GetString(key string) string {
	return c.current.Load().GetString(key)
}

func (c *viperConfig) GetBool(key string) bool {
	return c.current.Load().GetBool(key)
}

func (c *viperConfig) IsSet(key string) bool {
	return c.current.Load().IsSet(key)
}

func (c *viperConfig) GetAll() map[string]interface{} {
	return c.current.Load().AllSettings()
}

// Options 런타임 설정 로드 옵션
type Options struct {
	// Path 설정 파일 경로. 비어 있으면 환경 변수와 기본값만 사용합니다.
	Path string
	// EnvPrefix 환경 변수 접두사 (예: PAYMENTS → PAYMENTS_PAYMENTS_CASH_ENABLED)
	EnvPrefix string
	// Defaults 키별 기본값
	Defaults map[string]interface{}
	// Watch 파일 변경 감지 여부
	Watch bool
	// OnChange 파일이 다시 로드된 뒤 호출됩니다.
	OnChange func()
	// OnError 다시 로드에 실패하면 호출됩니다. 이전 값이 계속 사용됩니다.
	OnError func(error)
}

// Load는 런타임 설정을 로드합니다.
func Load(opts Options) (Config, error) {
	cfg := &viperConfig{}
	if opts.Path == "" {
		cfg.current.Store(newViper(opts))
		return cfg, nil
	}

	if _, err := os.Stat(opts.Path); err != nil {
		return nil, fmt.Errorf("설정 파일 확인 실패: %w", err)
	}
	snapshot, err := readSnapshot(opts)
	if err != nil {
		return nil, err
	}
	cfg.current.Store(snapshot)

	if opts.Watch {
		// 감시 전용 인스턴스: viper가 내부 고루틴에서 이 인스턴스를 다시 읽으므로
		// 요청 경로에서는 절대 사용하지 않습니다.
		watcher := newViper(opts)
		watcher.SetConfigFile(opts.Path)
		watcher.OnConfigChange(func(fsnotify.Event) {
			next, err := readSnapshot(opts)
			if err != nil {
				if opts.OnError != nil {
					opts.OnError(err)
				}
				return
			}
			cfg.current.Store(next)
			if opts.OnChange != nil {
				opts.OnChange()
			}
		})
		watcher.WatchConfig()
	}

	return cfg, nil
}

func newViper(opts Options) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range opts.Defaults {
		v.SetDefault(key, value)
	}

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(strings.ToUpper(opts.EnvPrefix))
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readSnapshot(opts Options) (*viper.Viper, error) {
	v := newViper(opts)
	v.SetConfigFile(opts.Path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
	}
	return v, nil
}
