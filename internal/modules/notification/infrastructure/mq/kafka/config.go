package kafka

import (
	"errors"
	"strings"

	"github.com/IBM/sarama"
)

var (
	ErrNoBrokers = errors.New("kafka brokers is empty")
	ErrNoTopic   = errors.New("kafka topic is empty")
	ErrNoGroup   = errors.New("kafka consumer group id is empty")
)

func newSaramaConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	if id := strings.TrimSpace(clientID); id != "" {
		sc.ClientID = id
	}
	return sc
}
