package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/subscription-service/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// EnsureKafkaTopics проверяет и создает необходимые топики Kafka.
func EnsureKafkaTopics(ctx context.Context, cfg *Config, log *logger.Logger) error {
	brokers := cfg.Brokers

	// Определяем необходимые топики и их конфигурацию
	requiredTopics := make(map[string]kafkaGo.TopicConfig, len(Topics()))
	for _, topic := range Topics() {
		requiredTopics[topic] = kafkaGo.TopicConfig{
			Topic:             topic,
			NumPartitions:     cfg.NumPartitions,
			ReplicationFactor: cfg.ReplicationFactor,
		}
	}

	log.Infow("Ensuring Kafka topics exist...", "topics", getTopicNames(requiredTopics))

	// Проверка адреса брокера
	if len(brokers) == 0 || brokers[0] == "" {
		log.Errorw("Kafka broker address is empty")
		return errors.New("kafka broker address is empty")
	}
	_, portStr, err := net.SplitHostPort(strings.TrimSpace(brokers[0]))
	if err != nil {
		log.Errorw("Invalid Kafka broker address format", "broker", brokers[0], "error", err)
		return fmt.Errorf("invalid broker address %s: %w", brokers[0], err)
	}
	_, err = strconv.Atoi(portStr)
	if err != nil {
		log.Errorw("Invalid Kafka broker port", "broker", brokers[0], "error", err)
		return fmt.Errorf("invalid broker port %s: %w", brokers[0], err)
	}

	// Подключаемся к первому брокеру для админских операций
	connCtx, cancelConn := context.WithTimeout(ctx, 15*time.Second)
	defer cancelConn()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", brokers[0])
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker for topic creation", "broker", brokers[0], "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	log.Debugw("Connected to Kafka controller", "address", conn.RemoteAddr().String())

	partitions, err := conn.ReadPartitions()
	if err != nil {
		log.Errorw("Failed to read partitions from Kafka", "error", err)
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}

	existingTopics := make(map[string]bool)
	for _, p := range partitions {
		existingTopics[p.Topic] = true
	}
	log.Debugw("Found existing topics", "count", len(existingTopics))

	var topicsToCreate []kafkaGo.TopicConfig
	for topicName, config := range requiredTopics {
		if !existingTopics[topicName] {
			log.Infow("Topic needs to be created", "topic", topicName)
			topicsToCreate = append(topicsToCreate, config)
		} else {
			log.Debugw("Topic already exists", "topic", topicName)
		}
	}

	if len(topicsToCreate) == 0 {
		log.Infow("All required topics already exist")
		return nil
	}

	// Топики создаются только через контроллер кластера
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	controllerConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer controllerConn.Close()

	log.Infow("Attempting to create topics...", "count", len(topicsToCreate))
	if err := controllerConn.CreateTopics(topicsToCreate...); err != nil {
		if !errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Errorw("Failed to create topics", "error", err, "topics", getTopicNamesFromConfig(topicsToCreate))
			return fmt.Errorf("kafka create topics failed: %w", err)
		}
		// другой экземпляр успел создать топик
		log.Warnw("One or more topics already existed during creation attempt", "topics", getTopicNamesFromConfig(topicsToCreate))
	}

	log.Infow("Successfully created or verified topics", "topics", getTopicNamesFromConfig(topicsToCreate))
	return nil
}

func getTopicNames(topicMap map[string]kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(topicMap))
	for name := range topicMap {
		names = append(names, name)
	}
	return names
}

func getTopicNamesFromConfig(topicConfigs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(topicConfigs))
	for _, tc := range topicConfigs {
		names = append(names, tc.Topic)
	}
	return names
}
