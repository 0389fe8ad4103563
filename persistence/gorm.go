package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-meet/config"
	"github.com/tcriess/lightspeed-meet/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	p := GormPersist{db: db}
	return &p, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no dsn configured")
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	err = db.Migrator().AutoMigrate(&types.User{}, &types.Meeting{}, &types.ScheduledMeeting{},
		&types.MeetingNotes{}, &types.EmailSubscription{}, &types.Recording{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (p *GormPersist) GetOrCreateMeeting(roomName, roomSid string) (*types.Meeting, error) {
	meeting := types.Meeting{RoomName: roomName, RoomSid: roomSid}
	assignments := map[string]interface{}{}
	if roomSid != "" {
		assignments["room_sid"] = roomSid
	}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "room_name"}}, DoNothing: true}
	if len(assignments) > 0 {
		onConflict = clause.OnConflict{Columns: []clause.Column{{Name: "room_name"}}, DoUpdates: clause.Assignments(assignments)}
	}
	err := p.db.Clauses(onConflict).Create(&meeting).Error
	if err != nil {
		return nil, err
	}
	// re-read, the conflict path does not fill in the existing row
	return p.GetMeetingByRoom(roomName)
}

func (p *GormPersist) GetMeetingByRoom(roomName string) (*types.Meeting, error) {
	meeting := types.Meeting{}
	err := p.db.Where("room_name = ?", roomName).First(&meeting).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &meeting, nil
}

func (p *GormPersist) ListOpenMeetings() ([]*types.Meeting, error) {
	meetings := make([]*types.Meeting, 0)
	err := p.db.Where("ended_at IS NULL").Find(&meetings).Error
	return meetings, err
}

func (p *GormPersist) EndMeeting(roomName string, endedAt time.Time) error {
	res := p.db.Model(&types.Meeting{}).Where("room_name = ? AND ended_at IS NULL", roomName).
		Update("ended_at", endedAt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPersist) ListMeetingsWithNotes(limit int) ([]*types.MeetingSummary, error) {
	summaries := make([]*types.MeetingSummary, 0)
	err := p.db.Model(&types.Meeting{}).
		Select("meetings.id, meetings.room_name, meetings.created_at, meeting_notes.generated_at, meeting_notes.model_used AS model").
		Joins("INNER JOIN meeting_notes ON meetings.id = meeting_notes.meeting_id").
		Order("meeting_notes.generated_at DESC").
		Limit(limit).
		Scan(&summaries).Error
	return summaries, err
}

func (p *GormPersist) StoreNotes(notes *types.MeetingNotes) error {
	return p.db.Create(notes).Error
}

func (p *GormPersist) GetLatestNotes(meetingID int64) (*types.MeetingNotes, error) {
	notes := types.MeetingNotes{}
	err := p.db.Where("meeting_id = ?", meetingID).Order("generated_at DESC, id DESC").First(&notes).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &notes, nil
}

func (p *GormPersist) CreateScheduledMeeting(m *types.ScheduledMeeting) error {
	if m.Status == "" {
		m.Status = types.ScheduleStatusScheduled
	}
	return p.db.Create(m).Error
}

func (p *GormPersist) GetScheduledMeeting(id int64) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.Preload("Host").First(&m, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (p *GormPersist) GetScheduledMeetingByRoom(roomName string) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.Preload("Host").Where("room_name = ?", roomName).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (p *GormPersist) ListScheduledMeetingsByHost(hostUserID int64) ([]*types.ScheduledMeeting, error) {
	meetings := make([]*types.ScheduledMeeting, 0)
	err := p.db.Where("host_user_id = ?", hostUserID).Order("scheduled_at ASC").Find(&meetings).Error
	return meetings, err
}

func (p *GormPersist) TransitionScheduledMeeting(id, hostUserID int64, from, to string) (*types.ScheduledMeeting, error) {
	m := types.ScheduledMeeting{}
	err := p.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&m, id).Error
		if err != nil {
			return notFound(err)
		}
		if m.HostUserID != hostUserID {
			return ErrNotOwner
		}
		if m.Status != from {
			return ErrNotFound
		}
		m.Status = to
		return tx.Model(&m).Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *GormPersist) UpsertEmailSubscription(sub *types.EmailSubscription) error {
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "meeting_id"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"participant_name"}),
	}).Create(sub).Error
}

func (p *GormPersist) GetEmailSubscriptions(meetingID int64) ([]*types.EmailSubscription, error) {
	subs := make([]*types.EmailSubscription, 0)
	err := p.db.Where("meeting_id = ?", meetingID).Find(&subs).Error
	return subs, err
}

func (p *GormPersist) DeleteEmailSubscription(meetingID int64, email string) error {
	return p.db.Where("meeting_id = ? AND email = ?", meetingID, email).
		Delete(&types.EmailSubscription{}).Error
}

func (p *GormPersist) CreateRecording(meetingID int64, egressID string) (*types.Recording, error) {
	rec := types.Recording{
		MeetingID: meetingID,
		EgressID:  egressID,
		Status:    types.RecordingStatusRecording,
	}
	err := p.db.Create(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *GormPersist) GetActiveRecording(meetingID int64) (*types.Recording, error) {
	rec := types.Recording{}
	err := p.db.Where("meeting_id = ? AND status = ?", meetingID, types.RecordingStatusRecording).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (p *GormPersist) UpdateRecordingStatus(egressID, status, audioURL string, durationMS int64) error {
	res := p.db.Model(&types.Recording{}).Where("egress_id = ?", egressID).
		Updates(map[string]interface{}{"status": status, "audio_url": audioURL, "duration_ms": durationMS})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPersist) StoreUser(user *types.User) error {
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash"}),
	}).Create(user).Error
}

func (p *GormPersist) GetUserByEmail(email string) (*types.User, error) {
	user := types.User{}
	err := p.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (p *GormPersist) GetUsers() ([]*types.User, error) {
	users := make([]*types.User, 0)
	err := p.db.Find(&users).Error
	return users, err
}

func (p *GormPersist) DeleteUser(email string) error {
	return p.db.Where("email = ?", email).Delete(&types.User{}).Error
}

func (p *GormPersist) Close() error {
	return nil
}
