package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"pulsegate/pkg/config"
)

// Kind selects which address set a command targets.
type Kind string

const (
	KindDev    Kind = "dev"
	KindFunder Kind = "funder"
)

// ParseKind accepts "dev" or "funder".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindDev, KindFunder:
		return k, nil
	default:
		return "", fmt.Errorf("unknown address kind %q (want dev or funder)", s)
	}
}

// Op is a control command verb.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpReload Op = "reload"
)

// Command is one message published on the control channel.
type Command struct {
	Op      Op
	Kind    Kind
	Address string
}

func (c Command) String() string {
	if c.Op == OpReload {
		return string(OpReload)
	}
	return fmt.Sprintf("%s %s %s", c.Op, c.Kind, c.Address)
}

// ParseCommand parses "add <kind> <addr>", "remove <kind> <addr>" or "reload".
func ParseCommand(payload string) (Command, error) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return Command{}, errors.New("empty command")
	}

	op := Op(strings.ToLower(fields[0]))
	switch op {
	case OpReload:
		if len(fields) != 1 {
			return Command{}, fmt.Errorf("reload takes no arguments: %q", payload)
		}
		return Command{Op: OpReload}, nil
	case OpAdd, OpRemove:
		if len(fields) != 3 {
			return Command{}, fmt.Errorf("usage: %s <dev|funder> <address>", op)
		}
		kind, err := ParseKind(fields[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: op, Kind: kind, Address: fields[2]}, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// NewClient creates a Redis client from cfg.
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Watcher keeps the filter address sets in sync with two Redis sets and
// applies commands published on the control channel.
type Watcher struct {
	redisClient *redis.Client
	cfg         config.RedisConfig
	filter      *config.FilterConfig
	logger      *slog.Logger
}

func NewWatcher(rdb *redis.Client, cfg config.RedisConfig, filter *config.FilterConfig, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		redisClient: rdb,
		cfg:         cfg,
		filter:      filter,
		logger:      logger.With("component", "control"),
	}
}

// Key returns the Redis key holding the addresses of kind.
func (w *Watcher) Key(kind Kind) string {
	return w.cfg.KeyPrefix + ":" + string(kind) + "_addresses"
}

// SeededKey marks that Redis holds the authoritative address sets. Once it
// exists a missing set key means the set is empty.
func (w *Watcher) SeededKey() string {
	return w.cfg.KeyPrefix + ":seeded"
}

func (w *Watcher) seeded(ctx context.Context) (bool, error) {
	n, err := w.redisClient.Exists(ctx, w.SeededKey()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", w.SeededKey(), err)
	}
	return n > 0, nil
}

func (w *Watcher) set(kind Kind) *config.AddressSet {
	if kind == KindDev {
		return w.filter.DevAddresses
	}
	return w.filter.FunderAddresses
}

// Start reconciles once and then applies channel commands until ctx is done.
// It returns after the subscription is confirmed.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting address watcher", "channel", w.cfg.Channel)

	if err := w.Reconcile(ctx); err != nil {
		w.logger.Warn("Initial reconcile failed, keeping configured addresses", "error", err)
	}

	pubsub := w.redisClient.Subscribe(ctx, w.cfg.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", w.cfg.Channel, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				w.handle(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (w *Watcher) handle(ctx context.Context, payload string) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		w.logger.Warn("Ignoring control message", "payload", payload, "error", err)
		return
	}
	w.logger.Info("Received control command", "command", cmd.String())

	if cmd.Op == OpReload {
		if err := w.Reconcile(ctx); err != nil {
			w.logger.Error("Reconcile failed", "error", err)
		}
		return
	}
	w.apply(cmd)
}

// apply changes the local set only.
func (w *Watcher) apply(cmd Command) bool {
	if !config.ValidAddress(cmd.Address) {
		w.logger.Warn("Address is not a valid Solana public key", "kind", cmd.Kind, "address", cmd.Address)
	}
	s := w.set(cmd.Kind)
	if cmd.Op == OpAdd {
		return s.Add(cmd.Address)
	}
	return s.Remove(cmd.Address)
}

// Reconcile makes the local sets match Redis. Before Redis has been seeded
// a kind whose key does not exist keeps its local addresses; afterwards a
// missing key is an empty set.
func (w *Watcher) Reconcile(ctx context.Context) error {
	authoritative, err := w.seeded(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, kind := range []Kind{KindDev, KindFunder} {
		if err := w.reconcile(ctx, kind, authoritative); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Watcher) reconcile(ctx context.Context, kind Kind, authoritative bool) error {
	key := w.Key(kind)
	if !authoritative {
		n, err := w.redisClient.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", key, err)
		}
		if n == 0 {
			w.logger.Debug("No addresses in Redis, keeping current state", "key", key)
			return nil
		}
	}

	members, err := w.redisClient.SMembers(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	remote := make(map[string]struct{}, len(members))
	for _, m := range members {
		remote[m] = struct{}{}
	}

	local := w.set(kind)
	added, removed := 0, 0
	for _, addr := range local.List() {
		if _, ok := remote[addr]; !ok && local.Remove(addr) {
			removed++
		}
	}
	for addr := range remote {
		if local.Add(addr) {
			added++
		}
	}
	w.logger.Info("Reconciled addresses", "kind", kind, "added", added, "removed", removed, "total", local.Len())
	return nil
}

// AddAddress stores addr in Redis, applies it locally and notifies other
// instances.
func (w *Watcher) AddAddress(ctx context.Context, kind Kind, addr string) error {
	if err := w.Seed(ctx); err != nil {
		return err
	}
	if err := w.redisClient.SAdd(ctx, w.Key(kind), addr).Err(); err != nil {
		return fmt.Errorf("failed to add %s address: %w", kind, err)
	}
	return w.commit(ctx, Command{Op: OpAdd, Kind: kind, Address: addr})
}

// RemoveAddress deletes addr from Redis, applies it locally and notifies
// other instances.
func (w *Watcher) RemoveAddress(ctx context.Context, kind Kind, addr string) error {
	if err := w.Seed(ctx); err != nil {
		return err
	}
	if err := w.redisClient.SRem(ctx, w.Key(kind), addr).Err(); err != nil {
		return fmt.Errorf("failed to remove %s address: %w", kind, err)
	}
	return w.commit(ctx, Command{Op: OpRemove, Kind: kind, Address: addr})
}

func (w *Watcher) commit(ctx context.Context, cmd Command) error {
	w.apply(cmd)
	if err := w.redisClient.Publish(ctx, w.cfg.Channel, cmd.String()).Err(); err != nil {
		return fmt.Errorf("failed to publish %q: %w", cmd.String(), err)
	}
	return nil
}

// Seed writes the local addresses of every kind whose key is missing and
// marks Redis as seeded. It does nothing once the marker exists, so sets
// emptied through the control plane stay empty.
func (w *Watcher) Seed(ctx context.Context) error {
	done, err := w.seeded(ctx)
	if err != nil || done {
		return err
	}

	writes := map[string][]any{}
	for _, kind := range []Kind{KindDev, KindFunder} {
		key := w.Key(kind)
		n, err := w.redisClient.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", key, err)
		}
		addrs := w.set(kind).List()
		if n > 0 || len(addrs) == 0 {
			continue
		}
		members := make([]any, len(addrs))
		for i, a := range addrs {
			members[i] = a
		}
		writes[key] = members
	}

	_, err = w.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, members := range writes {
			pipe.SAdd(ctx, key, members...)
		}
		pipe.Set(ctx, w.SeededKey(), "1", 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed addresses: %w", err)
	}
	for key, members := range writes {
		w.logger.Info("Seeded addresses", "key", key, "count", len(members))
	}
	return nil
}

// Members returns the addresses stored in Redis for kind.
func (w *Watcher) Members(ctx context.Context, kind Kind) ([]string, error) {
	return w.redisClient.SMembers(ctx, w.Key(kind)).Result()
}
