package configuration

import (
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/G-Research/timingscan/internal/common"
	commonconfig "github.com/G-Research/timingscan/internal/common/config"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

// CustomHooks reject unknown values for the enum-like settings while decoding.
var CustomHooks = []mapstructure.DecodeHookFunc{
	commonconfig.StringEnumHookFunc(domain.ParseTargetPolicy),
	commonconfig.StringEnumHookFunc(domain.ParseComparisonMode),
	commonconfig.StringEnumHookFunc(ParseOracleType),
	commonconfig.StringEnumHookFunc(ParseStoreType),
}

func ParseOracleType(s string) (OracleType, error) {
	switch OracleType(s) {
	case SubprocessOracle, InProcessOracle:
		return OracleType(s), nil
	case "":
		return SubprocessOracle, nil
	}
	return "", errors.Errorf("unknown oracle type %q", s)
}

func ParseStoreType(s string) (StoreType, error) {
	switch StoreType(s) {
	case FileStore, RedisStore:
		return StoreType(s), nil
	case "":
		return FileStore, nil
	}
	return "", errors.Errorf("unknown report store type %q", s)
}

// Load reads the configuration from defaultPath/config.yaml, the override files and explicitly set
// flags, then validates it.
func Load(defaultPath string, overrideConfigs []string, flags *pflag.FlagSet) (TimingScanConfiguration, error) {
	var config TimingScanConfiguration
	if _, err := common.LoadConfig(&config, defaultPath, overrideConfigs, flags, CustomHooks...); err != nil {
		return config, err
	}
	if config.TargetManagement.Policy == "" {
		config.TargetManagement.Policy = domain.StaticPolicy
	}
	if config.Oracle.Type == "" {
		config.Oracle.Type = SubprocessOracle
	}
	if config.ReportStore.Type == "" {
		config.ReportStore.Type = FileStore
	}
	if config.TargetManagement.Kubernetes.Kubeconfig != "" {
		kubeconfig, err := homedir.Expand(config.TargetManagement.Kubernetes.Kubeconfig)
		if err != nil {
			return config, errors.WithStack(err)
		}
		config.TargetManagement.Kubernetes.Kubeconfig = kubeconfig
	}
	return config, ValidateTimingScanConfiguration(config)
}
