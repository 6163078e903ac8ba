// etl.go — симуляция выполнения внешних ETL-пакетов.
// Запуск не блокирует исходный запрос (fire-and-forget): работа
// выполняется в фоновой горутине, статус хранится в БД и опрашивается
// отдельным запросом. Отмена прерывает симулируемую работу через
// context, а не только переписывает статус.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/sheetstore/internal/domain/model"
	"github.com/bigkaa/sheetstore/internal/repository"
)

var etlExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ss_etl_executions_total",
	Help: "Количество завершённых запусков ETL по итоговому статусу.",
}, []string{"status"})

// ETLService управляет запусками симулируемых ETL-пакетов.
type ETLService struct {
	repo        repository.ETLRepository
	minDelay    time.Duration
	maxDelay    time.Duration
	failureRate float64
	logger      *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewETLService создаёт сервис ETL.
// Длительность симулируемой работы выбирается случайно из
// [minDelay, maxDelay]; failureRate — доля искусственных провалов [0, 1].
func NewETLService(
	repo repository.ETLRepository,
	minDelay, maxDelay time.Duration,
	failureRate float64,
	logger *slog.Logger,
) *ETLService {
	return &ETLService{
		repo:        repo,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		failureRate: failureRate,
		logger:      logger.With(slog.String("component", "etl_service")),
		running:     make(map[string]context.CancelFunc),
	}
}

// Execute запускает пакет и немедленно возвращает запись о запуске.
// Завершения работы вызывающий не дожидается — статус опрашивается
// через Status.
func (s *ETLService) Execute(ctx context.Context, packageName string) (*model.ETLExecution, error) {
	if packageName == "" {
		return nil, fmt.Errorf("%w: имя пакета обязательно", ErrValidation)
	}

	exec := &model.ETLExecution{
		ID:          uuid.New().String(),
		PackageName: packageName,
		Status:      model.ETLStatusRunning,
		StartedAt:   time.Now().UTC(),
		Message:     "пакет выполняется",
	}
	if err := s.repo.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("регистрация запуска: %w", err)
	}

	// Фоновая работа живёт дольше исходного запроса — свой context.
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[exec.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.simulate(runCtx, exec.ID, packageName)

	s.logger.Info("Запуск ETL-пакета",
		slog.String("execution_id", exec.ID),
		slog.String("package", packageName),
	)
	return exec, nil
}

// simulate имитирует долгую внешнюю работу и фиксирует итоговый статус.
func (s *ETLService) simulate(ctx context.Context, id, packageName string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	delay := s.minDelay
	if s.maxDelay > s.minDelay {
		delay += rand.N(s.maxDelay - s.minDelay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	// Статус пишется с отдельным context: исходный может быть уже отменён.
	statusCtx, statusCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer statusCancel()

	select {
	case <-ctx.Done():
		s.finish(statusCtx, id, model.ETLStatusCancelled, "выполнение прервано по запросу")
	case <-timer.C:
		if rand.Float64() < s.failureRate {
			s.finish(statusCtx, id, model.ETLStatusFailed,
				fmt.Sprintf("пакет %s завершился с ошибкой", packageName))
			return
		}
		s.finish(statusCtx, id, model.ETLStatusSucceeded,
			fmt.Sprintf("пакет %s выполнен успешно", packageName))
	}
}

func (s *ETLService) finish(ctx context.Context, id, status, message string) {
	if err := s.repo.SetStatus(ctx, id, status, message); err != nil {
		// Терминальный статус уже записан другим путём — не ошибка.
		if errors.Is(err, repository.ErrNotFound) {
			return
		}
		s.logger.Error("Не удалось записать статус ETL",
			slog.String("execution_id", id),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		return
	}
	etlExecutionsTotal.WithLabelValues(status).Inc()
	s.logger.Info("Запуск ETL завершён",
		slog.String("execution_id", id),
		slog.String("status", status),
	)
}

// Status возвращает текущее состояние запуска.
func (s *ETLService) Status(ctx context.Context, id string) (*model.ETLExecution, error) {
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: запуск %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение статуса: %w", err)
	}
	return exec, nil
}

// Cancel прерывает выполняющийся запуск.
// Если горутина запуска жива в этом процессе — её context отменяется
// и статус выставит она сама; иначе статус переводится напрямую.
func (s *ETLService) Cancel(ctx context.Context, id string) (*model.ETLExecution, error) {
	exec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: запуск %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение запуска: %w", err)
	}
	if exec.Status != model.ETLStatusRunning {
		return nil, fmt.Errorf("%w: запуск уже в статусе %s", ErrInvalidState, exec.Status)
	}

	s.mu.Lock()
	cancel, ok := s.running[id]
	s.mu.Unlock()

	if ok {
		cancel()
	} else {
		// Запуск числится RUNNING, но горутины нет (например, после
		// рестарта процесса) — фиксируем отмену напрямую.
		if err := s.repo.SetStatus(ctx, id, model.ETLStatusCancelled, "выполнение прервано по запросу"); err != nil &&
			!errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("отмена запуска: %w", err)
		}
		etlExecutionsTotal.WithLabelValues(model.ETLStatusCancelled).Inc()
	}

	s.logger.Info("Отмена запуска ETL", slog.String("execution_id", id))
	return s.repo.GetByID(ctx, id)
}

// List возвращает запуски, новые первыми.
func (s *ETLService) List(ctx context.Context, limit, offset int) ([]*model.ETLExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	execs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение списка запусков: %w", err)
	}
	return execs, nil
}

// Shutdown отменяет все выполняющиеся запуски и дожидается их горутин.
func (s *ETLService) Shutdown() {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
