package boltstore

import (
	"fmt"

	"github.com/emberline-mud/goember/pkg/gamedb"
	bbolt "go.etcd.io/bbolt"
)

// Store wraps a bbolt database and an in-memory cache for ACID persistence.
// Writes are per-call transactions; a failed write never leaves partial
// state behind.
type Store struct {
	bolt  *bbolt.DB
	cache *gamedb.Database
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	// Ensure all buckets exist.
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketObjects, bucketChannels, bucketChanAliases, bucketStates} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{
		bolt:  db,
		cache: gamedb.NewDatabase(),
	}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// DB returns the in-memory database cache.
func (s *Store) DB() *gamedb.Database {
	return s.cache
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// PutObject persists a single object to bbolt (write-through).
func (s *Store) PutObject(obj *gamedb.Object) error {
	data, err := encodeObject(obj)
	if err != nil {
		return fmt.Errorf("boltstore: encode object %v: %w", obj.DBRef, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Put(refToKey(obj.DBRef), data)
	})
}

// PutObjects persists multiple objects in a single bbolt transaction.
func (s *Store) PutObjects(objs ...*gamedb.Object) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		for _, obj := range objs {
			if obj == nil {
				continue
			}
			data, err := encodeObject(obj)
			if err != nil {
				return fmt.Errorf("boltstore: encode object %v: %w", obj.DBRef, err)
			}
			if err := b.Put(refToKey(obj.DBRef), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteObject removes an object from bbolt.
func (s *Store) DeleteObject(ref gamedb.DBRef) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Delete(refToKey(ref))
	})
}

// PutChannel persists a channel.
func (s *Store) PutChannel(ch *gamedb.Channel) error {
	data, err := encodeChannel(ch)
	if err != nil {
		return fmt.Errorf("boltstore: encode channel %q: %w", ch.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).Put(channelKey(ch.Name), data)
	})
}

// DeleteChannel removes a channel.
func (s *Store) DeleteChannel(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChannels).Delete(channelKey(name))
	})
}

// PutChanAlias persists a player's channel alias.
func (s *Store) PutChanAlias(ca *gamedb.ChanAlias) error {
	data, err := encodeChanAlias(ca)
	if err != nil {
		return fmt.Errorf("boltstore: encode alias %q: %w", ca.Alias, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanAliases).Put(aliasKey(ca.Player, ca.Alias), data)
	})
}

// DeleteChanAlias removes a player's channel alias.
func (s *Store) DeleteChanAlias(player gamedb.DBRef, alias string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChanAliases).Delete(aliasKey(player, alias))
	})
}

// PutStateStack persists a player's state-stack configuration (the list of
// registry paths, bottom to top).
func (s *Store) PutStateStack(player gamedb.DBRef, paths []string) error {
	data, err := encodeStateStack(paths)
	if err != nil {
		return fmt.Errorf("boltstore: encode states for %v: %w", player, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStates).Put(refToKey(player), data)
	})
}

// StateStack returns a player's persisted state-stack configuration.
// A player with no saved stack gets nil, nil.
func (s *Store) StateStack(player gamedb.DBRef) ([]string, error) {
	var paths []string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStates).Get(refToKey(player))
		if data == nil {
			return nil
		}
		decoded, err := decodeStateStack(data)
		if err != nil {
			return err
		}
		paths = decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: decode states for %v: %w", player, err)
	}
	return paths, nil
}

// DeleteStateStack removes a player's persisted state-stack configuration.
func (s *Store) DeleteStateStack(player gamedb.DBRef) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketStates).Delete(refToKey(player))
	})
}

// PutMeta persists database metadata (version, next dbref).
func (s *Store) PutMeta() error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := b.Put(keyVersion, intToKey(s.cache.Version)); err != nil {
			return err
		}
		return b.Put(keyNextRef, intToKey(int(s.cache.NextRef)))
	})
}

// LoadAll populates the in-memory cache from bbolt.
func (s *Store) LoadAll() error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyVersion); v != nil {
			s.cache.Version = keyToInt(v)
		}
		if v := meta.Get(keyNextRef); v != nil {
			s.cache.NextRef = gamedb.DBRef(keyToInt(v))
		}

		return tx.Bucket(bucketObjects).ForEach(func(k, v []byte) error {
			obj, err := decodeObject(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode object %v: %w", keyToRef(k), err)
			}
			s.cache.Add(obj)
			return nil
		})
	})
}

// Channels loads all persisted channels and aliases.
func (s *Store) Channels() ([]gamedb.Channel, []gamedb.ChanAlias, error) {
	var channels []gamedb.Channel
	var aliases []gamedb.ChanAlias
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketChannels).ForEach(func(k, v []byte) error {
			ch, err := decodeChannel(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode channel %q: %w", k, err)
			}
			channels = append(channels, *ch)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket(bucketChanAliases).ForEach(func(k, v []byte) error {
			ca, err := decodeChanAlias(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode alias %q: %w", k, err)
			}
			aliases = append(aliases, *ca)
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return channels, aliases, nil
}
