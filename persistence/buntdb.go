package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/types"
	"github.com/tidwall/buntdb"
)

// BuntDBPersist is the file-backed persistence backend. Records are stored
// as JSON under typed key prefixes:
//
//	meeting:<room>           types.Meeting
//	sched:<id>               types.ScheduledMeeting
//	schedroom:<room>         scheduled meeting id
//	notes:<meetingid>:<seq>  types.MeetingNotes (seq ascending)
//	sub:<meetingid>:<email>  types.EmailSubscription
//	rec:<egressid>           types.Recording
//	recactive:<meetingid>    egress id of the active recording
//	user:<email>             types.User
//	seq:<name>               id sequences
type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no dsn configured")
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("notesgenerated", "notes:*", buntdb.IndexJSON("generatedAt"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return &BuntDBPersist{db: db}, nil
}

func nextSeq(tx *buntdb.Tx, name string) (int64, error) {
	key := "seq:" + name
	var seq int64
	if v, err := tx.Get(key); err == nil {
		fmt.Sscanf(v, "%d", &seq)
	} else if err != buntdb.ErrNotFound {
		return 0, err
	}
	seq++
	_, _, err := tx.Set(key, fmt.Sprintf("%d", seq), nil)
	return seq, err
}

func setJSON(tx *buntdb.Tx, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(key, string(data), nil)
	return err
}

func getJSON(tx *buntdb.Tx, key string, v interface{}) error {
	data, err := tx.Get(key)
	if err == buntdb.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}

func (p *BuntDBPersist) GetOrCreateMeeting(roomName, roomSid string) (*types.Meeting, error) {
	meeting := types.Meeting{}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		err := getJSON(tx, "meeting:"+roomName, &meeting)
		if err == ErrNotFound {
			id, err := nextSeq(tx, "meeting")
			if err != nil {
				return err
			}
			meeting = types.Meeting{ID: id, RoomName: roomName, RoomSid: roomSid, CreatedAt: time.Now()}
			return setJSON(tx, "meeting:"+roomName, &meeting)
		}
		if err != nil {
			return err
		}
		if roomSid != "" && meeting.RoomSid != roomSid {
			meeting.RoomSid = roomSid
			return setJSON(tx, "meeting:"+roomName, &meeting)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (p *BuntDBPersist) GetMeetingByRoom(roomName string) (*types.Meeting, error) {
	meeting := types.Meeting{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		return getJSON(tx, "meeting:"+roomName, &meeting)
	})
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (p *BuntDBPersist) ListOpenMeetings() ([]*types.Meeting, error) {
	meetings := make([]*types.Meeting, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("meeting:*", func(key, value string) bool {
			meeting := types.Meeting{}
			if err := json.Unmarshal([]byte(value), &meeting); err == nil && meeting.EndedAt == nil {
				meetings = append(meetings, &meeting)
			}
			return true
		})
	})
	return meetings, err
}

func (p *BuntDBPersist) EndMeeting(roomName string, endedAt time.Time) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		meeting := types.Meeting{}
		err := getJSON(tx, "meeting:"+roomName, &meeting)
		if err != nil {
			return err
		}
		if meeting.EndedAt != nil {
			return ErrNotFound
		}
		meeting.EndedAt = &endedAt
		return setJSON(tx, "meeting:"+roomName, &meeting)
	})
}

func (p *BuntDBPersist) ListMeetingsWithNotes(limit int) ([]*types.MeetingSummary, error) {
	summaries := make([]*types.MeetingSummary, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		meetingsById := make(map[int64]*types.Meeting)
		err := tx.AscendKeys("meeting:*", func(key, value string) bool {
			meeting := types.Meeting{}
			if err := json.Unmarshal([]byte(value), &meeting); err == nil {
				meetingsById[meeting.ID] = &meeting
			}
			return true
		})
		if err != nil {
			return err
		}
		return tx.Descend("notesgenerated", func(key, value string) bool {
			notes := types.MeetingNotes{}
			if err := json.Unmarshal([]byte(value), &notes); err != nil {
				return true
			}
			meeting, ok := meetingsById[notes.MeetingID]
			if !ok {
				return true
			}
			delete(meetingsById, notes.MeetingID) // latest notes only
			summaries = append(summaries, &types.MeetingSummary{
				ID:          meeting.ID,
				RoomName:    meeting.RoomName,
				CreatedAt:   meeting.CreatedAt,
				GeneratedAt: notes.GeneratedAt,
				Model:       notes.ModelUsed,
			})
			return len(summaries) < limit
		})
	})
	return summaries, err
}

func (p *BuntDBPersist) StoreNotes(notes *types.MeetingNotes) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		id, err := nextSeq(tx, "notes")
		if err != nil {
			return err
		}
		notes.ID = id
		if notes.GeneratedAt.IsZero() {
			notes.GeneratedAt = time.Now()
		}
		return setJSON(tx, fmt.Sprintf("notes:%d:%012d", notes.MeetingID, id), notes)
	})
}

func (p *BuntDBPersist) GetLatestNotes(meetingID int64) (*types.MeetingNotes, error) {
	notes := types.MeetingNotes{}
	found := false
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys(fmt.Sprintf("notes:%d:*", meetingID), func(key, value string) bool {
			if err := json.Unmarshal([]byte(value), &notes); err == nil {
				found = true
			}
			return false // first (highest seq) entry only
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &notes, nil
}

func (p *BuntDBPersist) CreateScheduledMeeting(m *types.ScheduledMeeting) error {
	if m.Status == "" {
		m.Status = types.ScheduleStatusScheduled
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get("schedroom:" + m.RoomName); err == nil {
			return fmt.Errorf("room name %s already scheduled", m.RoomName)
		}
		id, err := nextSeq(tx, "sched")
		if err != nil {
			return err
		}
		m.ID = id
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		if _, _, err := tx.Set("schedroom:"+m.RoomName, fmt.Sprintf("%d", id), nil); err != nil {
			return err
		}
		return setJSON(tx, fmt.Sprintf("sched:%d", id), m)
	})
}

// attachHost loads the owning host account so that HostName resolves. Hosts
// are keyed by e-mail, so this is a scan, but the host list is the small
// seeded set.
func attachHost(tx *buntdb.Tx, m *types.ScheduledMeeting) {
	tx.AscendKeys("user:*", func(key, value string) bool {
		user := types.User{}
		if err := json.Unmarshal([]byte(value), &user); err == nil && user.ID == m.HostUserID {
			m.Host = &user
			return false
		}
		return true
	})
}

func (p *BuntDBPersist) GetScheduledMeeting(id int64) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		err := getJSON(tx, fmt.Sprintf("sched:%d", id), &m)
		if err != nil {
			return err
		}
		attachHost(tx, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *BuntDBPersist) GetScheduledMeetingByRoom(roomName string) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		idStr, err := tx.Get("schedroom:" + roomName)
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		err = getJSON(tx, "sched:"+idStr, &m)
		if err != nil {
			return err
		}
		attachHost(tx, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *BuntDBPersist) ListScheduledMeetingsByHost(hostUserID int64) ([]*types.ScheduledMeeting, error) {
	meetings := make([]*types.ScheduledMeeting, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("sched:*", func(key, value string) bool {
			m := types.ScheduledMeeting{}
			if err := json.Unmarshal([]byte(value), &m); err == nil && m.HostUserID == hostUserID {
				meetings = append(meetings, &m)
			}
			return true
		})
	})
	return meetings, err
}

func (p *BuntDBPersist) TransitionScheduledMeeting(id, hostUserID int64, from, to string) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		err := getJSON(tx, fmt.Sprintf("sched:%d", id), &m)
		if err != nil {
			return err
		}
		if m.HostUserID != hostUserID {
			return ErrNotOwner
		}
		if m.Status != from {
			return ErrNotFound
		}
		m.Status = to
		return setJSON(tx, fmt.Sprintf("sched:%d", id), &m)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *BuntDBPersist) UpsertEmailSubscription(sub *types.EmailSubscription) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		key := fmt.Sprintf("sub:%d:%s", sub.MeetingID, strings.ToLower(sub.Email))
		existing := types.EmailSubscription{}
		err := getJSON(tx, key, &existing)
		if err == nil {
			existing.ParticipantName = sub.ParticipantName
			*sub = existing
			return setJSON(tx, key, &existing)
		}
		if err != ErrNotFound {
			return err
		}
		id, err := nextSeq(tx, "sub")
		if err != nil {
			return err
		}
		sub.ID = id
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = time.Now()
		}
		return setJSON(tx, key, sub)
	})
}

func (p *BuntDBPersist) GetEmailSubscriptions(meetingID int64) ([]*types.EmailSubscription, error) {
	subs := make([]*types.EmailSubscription, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(fmt.Sprintf("sub:%d:*", meetingID), func(key, value string) bool {
			sub := types.EmailSubscription{}
			if err := json.Unmarshal([]byte(value), &sub); err == nil {
				subs = append(subs, &sub)
			}
			return true
		})
	})
	return subs, err
}

func (p *BuntDBPersist) DeleteEmailSubscription(meetingID int64, email string) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(fmt.Sprintf("sub:%d:%s", meetingID, strings.ToLower(email)))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (p *BuntDBPersist) CreateRecording(meetingID int64, egressID string) (*types.Recording, error) {
	rec := types.Recording{
		MeetingID: meetingID,
		EgressID:  egressID,
		Status:    types.RecordingStatusRecording,
		CreatedAt: time.Now(),
	}
	err := p.db.Update(func(tx *buntdb.Tx) error {
		id, err := nextSeq(tx, "rec")
		if err != nil {
			return err
		}
		rec.ID = id
		if err := setJSON(tx, "rec:"+egressID, &rec); err != nil {
			return err
		}
		_, _, err = tx.Set(fmt.Sprintf("recactive:%d", meetingID), egressID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *BuntDBPersist) GetActiveRecording(meetingID int64) (*types.Recording, error) {
	rec := types.Recording{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		egressID, err := tx.Get(fmt.Sprintf("recactive:%d", meetingID))
		if err == buntdb.ErrNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return getJSON(tx, "rec:"+egressID, &rec)
	})
	if err != nil {
		return nil, err
	}
	if rec.Status != types.RecordingStatusRecording {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (p *BuntDBPersist) UpdateRecordingStatus(egressID, status, audioURL string, durationMS int64) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		rec := types.Recording{}
		err := getJSON(tx, "rec:"+egressID, &rec)
		if err != nil {
			return err
		}
		rec.Status = status
		rec.AudioURL = audioURL
		rec.DurationMS = durationMS
		if err := setJSON(tx, "rec:"+egressID, &rec); err != nil {
			return err
		}
		if status != types.RecordingStatusRecording {
			if _, err := tx.Delete(fmt.Sprintf("recactive:%d", rec.MeetingID)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) StoreUser(user *types.User) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		existing := types.User{}
		err := getJSON(tx, "user:"+user.Email, &existing)
		if err == nil {
			user.ID = existing.ID
			user.CreatedAt = existing.CreatedAt
		} else if err == ErrNotFound {
			id, err := nextSeq(tx, "user")
			if err != nil {
				return err
			}
			user.ID = id
			if user.CreatedAt.IsZero() {
				user.CreatedAt = time.Now()
			}
		} else {
			return err
		}
		return setJSON(tx, "user:"+user.Email, user)
	})
}

func (p *BuntDBPersist) GetUserByEmail(email string) (*types.User, error) {
	user := types.User{}
	err := p.db.View(func(tx *buntdb.Tx) error {
		return getJSON(tx, "user:"+email, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *BuntDBPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("user:*", func(key, value string) bool {
			user := types.User{}
			if err := json.Unmarshal([]byte(value), &user); err == nil {
				users = append(users, &user)
			}
			return true
		})
	})
	return users, err
}

func (p *BuntDBPersist) DeleteUser(email string) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("user:" + email)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
