package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/grading"
	"github.com/trezcool/darasa/core/question"
	"github.com/trezcool/darasa/core/session"
	dummyclassroom "github.com/trezcool/darasa/services/classroom/dummy"
	dummychat "github.com/trezcool/darasa/services/openai/dummy"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

type testEnv struct {
	server   *Server
	conf     *core.Config
	cookies  *cookieManager
	sessions session.Repository
	gateway  *dummyclassroom.Gateway
	chat     *dummychat.Service

	sessionSvc  *session.Service
	questionSvc *question.Service
}

func newTestConfig() *core.Config {
	conf := &core.Config{
		AppName:          "Darasa",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        []byte("test-secret-key-test-secret-key!"),
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Address: "noreply@localhost"},
	}
	conf.Server.Addr = ":0"
	conf.Server.CookieName = "darasa_session"
	conf.Server.UpstreamTimeout = time.Minute
	conf.Server.SessionTTL = 7 * 24 * time.Hour
	conf.Server.AuthTokenTTL = 10 * time.Minute
	conf.Grading.LetterScale = "A:90,B:80,C:70,D:60"
	conf.Grading.FallbackLetter = "F"
	conf.Grading.FuzzyMatchThreshold = 0.6
	return conf
}

func newTestEnv(t *testing.T, chatResponses ...[]byte) *testEnv {
	t.Helper()

	conf := newTestConfig()
	logger := core.NopLogger{}

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("newTestEnv() failed: %v", err)
	}
	sessRepo := inmemdb.NewSessionRepository(db)
	qRepo := inmemdb.NewQuestionRepository(db)

	chat := dummychat.NewService(chatResponses...)
	gateway := dummyclassroom.NewGateway()

	sessionSvc := session.NewService(sessRepo, conf, logger)
	questionSvc := question.NewService(qRepo, chat, logger, conf)
	classroomSvc := classroom.NewService(gateway, sessionSvc, conf)
	engine, err := grading.NewEngine(classroomSvc, questionSvc, chat, nil, logger, conf)
	if err != nil {
		t.Fatalf("newTestEnv() failed: %v", err)
	}

	validate := validator.New()
	translator := newTestTranslator()
	core.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		SessionSvc:     sessionSvc,
		QuestionSvc:    questionSvc,
		ClassroomSvc:   classroomSvc,
		Engine:         engine,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return &testEnv{
		server:      server,
		conf:        conf,
		cookies:     newCookieManager(conf),
		sessions:    sessRepo,
		gateway:     gateway,
		chat:        chat,
		sessionSvc:  sessionSvc,
		questionSvc: questionSvc,
	}
}

func newTestTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// authedSession writes a ready session with both proofs available: its ID for
// the cookie channel and a bearer token for the token channel.
func (env *testEnv) authedSession(t *testing.T) session.Session {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	rawTok, _ := json.Marshal(map[string]interface{}{"access_token": "test-access-token", "token_type": "Bearer"})
	sess, err := env.sessions.CreateSession(ctx, session.Session{
		ID:         uuid.New(),
		Email:      "teacher@test.test",
		OAuthToken: rawTok,
		CreatedAt:  now,
		ExpiresAt:  now.Add(env.conf.Server.SessionTTL),
	})
	if err != nil {
		t.Fatalf("authedSession() failed: %v", err)
	}
	sess, err = env.sessions.SetSessionToken(ctx, sess.ID, uuid.NewString())
	if err != nil {
		t.Fatalf("authedSession() failed: %v", err)
	}
	return sess
}

func (env *testEnv) sessionCookie(t *testing.T, sess session.Session) *http.Cookie {
	t.Helper()
	encoded, err := env.cookies.sc.Encode(env.conf.Server.CookieName, sess.ID.String())
	if err != nil {
		t.Fatalf("sessionCookie() failed: %v", err)
	}
	return &http.Cookie{Name: env.conf.Server.CookieName, Value: encoded}
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echoHeaderContentType, "application/json")
	return req
}

const echoHeaderContentType = "Content-Type"

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshallBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshallBody() failed: %v; body: %s", err, rec.Body.String())
	}
}
