package consul_client

import (
	"fmt"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/synalix-ai/admin-backend/internal/config"
)

// Connect establishes a connection to the Consul agent.
func Connect(consulAddress string, logger *zap.Logger) (*consulapi.Client, error) {
	logger.Info("Attempting to connect to Consul agent", zap.String("address", consulAddress))
	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = consulAddress
	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		logger.Error("Failed to create Consul client", zap.Error(err))
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	if _, err := client.Agent().Self(); err != nil { // Ping agent
		logger.Error("Failed to ping Consul agent", zap.Error(err))
		return nil, fmt.Errorf("failed to connect/ping consul agent: %w", err)
	}
	logger.Info("Successfully connected to Consul agent", zap.String("address", consulAddress))
	return client, nil
}

// RegisterService registers this service instance with Consul.
func RegisterService(consulClient *consulapi.Client, cfg *config.Config, serviceID string, logger *zap.Logger) error {
	host, portStr, err := net.SplitHostPort(cfg.Port)
	if err != nil {
		// If it doesn't contain ":", assume it's just the port number
		portStr = cfg.Port
		host = ""
		logger.Warn("Could not split host/port, assuming config value is port", zap.String("port_config", cfg.Port))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Error("Invalid port number in config", zap.String("port_config", cfg.Port), zap.Error(err))
		return fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}

	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    cfg.ServiceName,
		Port:    port,
		Address: host,
		Tags:    cfg.ServiceTags,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", getCheckAddress(host), port, cfg.HealthCheckPath),
			Interval:                       cfg.HealthCheckInterval.String(),
			Timeout:                        cfg.HealthCheckTimeout.String(),
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := consulClient.Agent().ServiceRegister(registration); err != nil {
		logger.Error("Failed to register service with Consul", zap.Error(err))
		return fmt.Errorf("failed to register service '%s' with Consul: %w", cfg.ServiceName, err)
	}
	return nil
}

// DeregisterService removes this service instance from Consul during shutdown.
func DeregisterService(consulClient *consulapi.Client, serviceID string, logger *zap.Logger) error {
	logger.Info("Deregistering service from Consul", zap.String("service_id", serviceID))
	if err := consulClient.Agent().ServiceDeregister(serviceID); err != nil {
		logger.Error("Failed to deregister service from Consul", zap.String("service_id", serviceID), zap.Error(err))
		return fmt.Errorf("failed to deregister service '%s': %w", serviceID, err)
	}
	return nil
}

// getCheckAddress determines the address to use for the Consul health check URL.
// If the provided service address is empty or unspecified (0.0.0.0), use 127.0.0.1.
func getCheckAddress(serviceAddress string) string {
	if serviceAddress == "" || serviceAddress == "0.0.0.0" {
		return "127.0.0.1"
	}
	return serviceAddress
}
