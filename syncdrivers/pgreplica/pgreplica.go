// Package pgreplica implements a reference collection.SyncFunc driven
// by PostgreSQL logical replication, grounded in the same
// connect-stream-reconnect shape as the teacher's
// internal/util/stdpool connection helpers (ping/retry-until-ready
// loop) and internal/source/logical's transaction-preserving
// OnBegin/OnData/OnCommit contract, here translating wal2json's
// row-level change stream into collection.SyncWrite calls instead of
// a downstream SQL apply loop.
package pgreplica

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/key"
)

// Config names the replication connection, slot, and publication this
// driver streams from, plus the row-keying function its target
// collection needs (collection.Config.GetKey's counterpart, since the
// driver never sees the collection itself, only its SyncContext).
type Config struct {
	// ConnString must already carry "replication=database" in its
	// query parameters (libpq connection string), as the simple query
	// protocol replication commands below require it.
	ConnString  string
	Slot        string
	Publication string
	GetKey      func(map[string]any) key.Key

	// ReconnectBackoff overrides the default exponential backoff
	// between stream reconnect attempts; nil uses
	// backoff.NewExponentialBackOff()'s defaults.
	ReconnectBackoff backoff.BackOff
}

// New returns a collection.SyncFunc that streams row-level changes via
// logical replication until ctx is canceled, per spec.md §4.3.2's sync
// contract.
func New(cfg Config) collection.SyncFunc[map[string]any] {
	return func(ctx context.Context, sc *collection.SyncContext[map[string]any]) (func(), error) {
		d := &driver{cfg: cfg, sc: sc, present: mapset.NewThreadUnsafeSet[key.Key]()}
		stopped := make(chan struct{})
		go d.run(ctx, stopped)
		return func() { <-stopped }, nil
	}
}

type driver struct {
	cfg     Config
	sc      *collection.SyncContext[map[string]any]
	present mapset.Set[key.Key]
}

// run reconnects and restreams until ctx is done, backing off between
// attempts the way internal/util/stdpool's OpenMySQLAsTarget backs off
// on a startup ping failure.
func (d *driver) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	bo := d.cfg.ReconnectBackoff
	if bo == nil {
		bo = backoff.NewExponentialBackOff()
	}

	for ctx.Err() == nil {
		err := d.connectAndStream(ctx)
		if ctx.Err() != nil {
			return
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			log.WithError(err).Error("pgreplica: giving up reconnecting")
			return
		}
		log.WithError(err).Warn("pgreplica: replication stream ended, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// connectAndStream opens one replication connection, ensures the
// configured slot exists, starts streaming at its confirmed flush LSN,
// and processes messages until the connection fails or ctx is done.
func (d *driver) connectAndStream(ctx context.Context) error {
	pgConn, err := pgconn.Connect(ctx, d.cfg.ConnString)
	if err != nil {
		return errors.Wrap(err, "connecting replication stream")
	}
	defer pgConn.Close(context.Background())

	startLSN, err := identifySystem(ctx, pgConn)
	if err != nil {
		return err
	}

	if err := createSlotIfMissing(ctx, pgConn, d.cfg.Slot); err != nil {
		return err
	}

	startSQL := fmt.Sprintf(
		"START_REPLICATION SLOT %s LOGICAL %s (proto_version '2', publication_names '%s', messages 'true')",
		d.cfg.Slot, formatLSN(startLSN), d.cfg.Publication,
	)
	if err := pgConn.Exec(ctx, startSQL).Close(); err != nil {
		return errors.Wrap(err, "starting logical replication")
	}

	return d.streamLoop(ctx, pgConn, startLSN)
}

// streamLoop reads CopyData messages off the replication connection:
// 'w' (WALData) carries one wal2json payload per spec.md's §4.3.2 sync
// contract, translated into begin/write/commit on d.sc; 'k'
// (PrimaryKeepaliveMessage) requests a standby status update, sent
// immediately if its reply-requested flag is set and otherwise on a
// fixed interval so the replication slot's restart LSN keeps advancing.
func (d *driver) streamLoop(ctx context.Context, pgConn *pgconn.PgConn, lastLSN uint64) error {
	standbyTicker := time.NewTicker(10 * time.Second)
	defer standbyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-standbyTicker.C:
			if err := sendStandbyStatusUpdate(ctx, pgConn, lastLSN, false); err != nil {
				return err
			}
		default:
		}

		rawMsg, err := pgConn.ReceiveMessage(ctx)
		if err != nil {
			if pgconn.Timeout(err) {
				continue
			}
			return errors.Wrap(err, "receiving replication message")
		}

		cd, ok := rawMsg.(*pgproto3.CopyData)
		if !ok || len(cd.Data) == 0 {
			continue
		}

		switch cd.Data[0] {
		case 'w': // WALData
			if len(cd.Data) < 25 {
				continue
			}
			walStart := binary.BigEndian.Uint64(cd.Data[1:9])
			payload := cd.Data[25:]
			if walStart > lastLSN {
				lastLSN = walStart
			}
			if err := d.applyWal2json(payload); err != nil {
				log.WithError(err).Warn("pgreplica: skipping unparseable change")
			}
		case 'k': // PrimaryKeepaliveMessage
			if len(cd.Data) < 18 {
				continue
			}
			replyRequested := cd.Data[17] != 0
			if replyRequested {
				if err := sendStandbyStatusUpdate(ctx, pgConn, lastLSN, false); err != nil {
					return err
				}
			}
		}
	}
}

// applyWal2json decodes one wal2json format-version-2 row change and
// drives it into d.sc per spec.md §4.8 step 2's multiplicity mapping:
// insert for a key not yet seen, update otherwise, delete on "D".
// Transaction boundary messages ("B"/"C") are acknowledged but produce
// no collection event, since this driver's begin/write/commit already
// brackets each row-level change individually.
func (d *driver) applyWal2json(payload []byte) error {
	msg, err := decodeWal2json(payload)
	if err != nil {
		return err
	}

	switch msg.Action {
	case "B", "C":
		return nil
	case "I":
		row := asRow(msg.Columns)
		k := d.cfg.GetKey(row)
		d.sc.Begin()
		if d.present.Contains(k) {
			d.sc.Write(collection.SyncWrite[map[string]any]{Type: collection.Update, Value: row})
		} else {
			d.sc.Write(collection.SyncWrite[map[string]any]{Type: collection.Insert, Value: row})
			d.present.Add(k)
		}
		d.sc.Commit()
		return nil
	case "U":
		row := asRow(msg.Columns)
		k := d.cfg.GetKey(row)
		d.sc.Begin()
		d.sc.Write(collection.SyncWrite[map[string]any]{Type: collection.Update, Value: row})
		d.present.Add(k)
		d.sc.Commit()
		return nil
	case "D":
		identity := asRow(msg.Identity)
		k := d.cfg.GetKey(identity)
		d.sc.Begin()
		d.sc.Write(collection.SyncWrite[map[string]any]{Type: collection.Delete, Value: identity})
		d.present.Remove(k)
		d.sc.Commit()
		return nil
	default:
		return newError("unknown wal2json action %q", msg.Action)
	}
}

// identifySystem runs IDENTIFY_SYSTEM and returns the server's current
// WAL position, used as the slot's initial start position on first
// connect.
func identifySystem(ctx context.Context, pgConn *pgconn.PgConn) (uint64, error) {
	results, err := pgConn.Exec(ctx, "IDENTIFY_SYSTEM").ReadAll()
	if err != nil {
		return 0, errors.Wrap(err, "IDENTIFY_SYSTEM")
	}
	if len(results) == 0 || len(results[0].Rows) == 0 {
		return 0, newError("IDENTIFY_SYSTEM returned no rows")
	}
	return parseLSN(string(results[0].Rows[0][2]))
}

// createSlotIfMissing issues CREATE_REPLICATION_SLOT, tolerating the
// "already exists" failure so repeated driver starts reuse the same
// slot (and therefore the same confirmed restart position) rather than
// accumulating orphaned slots.
func createSlotIfMissing(ctx context.Context, pgConn *pgconn.PgConn, slot string) error {
	sql := fmt.Sprintf("CREATE_REPLICATION_SLOT %s LOGICAL wal2json", slot)
	err := pgConn.Exec(ctx, sql).Close()
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return errors.Wrap(err, "CREATE_REPLICATION_SLOT")
	}
	return nil
}

// sendStandbyStatusUpdate acknowledges lastLSN as received, flushed,
// and applied. This driver has no separate apply-confirmation step
// beyond d.sc.Commit() succeeding, so all three positions are reported
// equal, matching the simplest correct standby status update shape.
func sendStandbyStatusUpdate(ctx context.Context, pgConn *pgconn.PgConn, lastLSN uint64, replyRequested bool) error {
	buf := make([]byte, 1+8+8+8+8+1)
	buf[0] = 'r'
	binary.BigEndian.PutUint64(buf[1:9], lastLSN)
	binary.BigEndian.PutUint64(buf[9:17], lastLSN)
	binary.BigEndian.PutUint64(buf[17:25], lastLSN)
	binary.BigEndian.PutUint64(buf[25:33], pgMicros(time.Now()))
	if replyRequested {
		buf[33] = 1
	}

	fe := pgConn.Frontend()
	fe.Send(&pgproto3.CopyData{Data: buf})
	return errors.Wrap(fe.Flush(), "sending standby status update")
}

// pgEpoch is 2000-01-01T00:00:00Z, the origin PostgreSQL's replication
// protocol times are measured from.
var pgEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func pgMicros(t time.Time) uint64 {
	return uint64(t.Sub(pgEpoch).Microseconds())
}

// parseLSN parses a "XXXXXXXX/XXXXXXXX" log sequence number into its
// 64-bit integer form.
func parseLSN(s string) (uint64, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, newError("malformed LSN %q", s)
	}
	hi, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, newError("malformed LSN %q: %v", s, err)
	}
	lo, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, newError("malformed LSN %q: %v", s, err)
	}
	return hi<<32 | lo, nil
}

// formatLSN renders a 64-bit LSN back into PostgreSQL's textual form.
func formatLSN(lsn uint64) string {
	return fmt.Sprintf("%X/%X", uint32(lsn>>32), uint32(lsn))
}
