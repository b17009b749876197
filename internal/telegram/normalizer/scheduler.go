package normalizer

import (
	"context"
	"sync"
	"time"

	"normalizer_bot/internal/logger"
)

// FireFunc 延迟到期后的回调，收到的是进线时捕获的快照
type FireFunc func(snapshot *Snapshot)

// DeferredScheduler 延迟调度器
// 进程内待处理表 + 每条消息独立的定时器。取消是协作式的：
// 只从表中移除条目，定时器照常触发，靠触发时的存在性检查变成空操作。
// 表不持久化，进程重启会静默丢弃在途消息（已接受的限制）。
type DeferredScheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[MessageKey]*Snapshot
}

// NewDeferredScheduler 创建调度器，待处理表初始为空
func NewDeferredScheduler() *DeferredScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &DeferredScheduler{
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[MessageKey]*Snapshot),
	}
}

// Schedule 登记快照并启动延迟定时器
// 同一键已有在途条目时不重复登记（先到先占）
func (s *DeferredScheduler) Schedule(snapshot *Snapshot, delay time.Duration, fire FireFunc) {
	key := snapshot.Key

	s.mu.Lock()
	if _, exists := s.pending[key]; exists {
		s.mu.Unlock()
		logger.L().Debugf("Message already pending, skipping: chat_id=%d, message_id=%d", key.ChatID, key.MessageID)
		return
	}
	s.pending[key] = snapshot
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		// 存在性检查：已被取消的条目在这里落空
		snap, ok := s.take(key)
		if !ok {
			logger.L().Debugf("Pending entry gone at fire time: chat_id=%d, message_id=%d", key.ChatID, key.MessageID)
			return
		}
		fire(snap)
	}()
}

// Cancel 移除在途条目，返回是否确有条目被移除
func (s *DeferredScheduler) Cancel(key MessageKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pending[key]; !exists {
		return false
	}
	delete(s.pending, key)
	return true
}

// Len 当前在途条目数
func (s *DeferredScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop 停止调度器并等待所有定时器协程退出
func (s *DeferredScheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	dropped := len(s.pending)
	s.pending = make(map[MessageKey]*Snapshot)
	s.mu.Unlock()

	if dropped > 0 {
		logger.L().Warnf("Scheduler stopped with %d in-flight messages dropped", dropped)
	}
}

// take 原子取出条目
func (s *DeferredScheduler) take(key MessageKey) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.pending[key]
	if !ok {
		return nil, false
	}
	delete(s.pending, key)
	return snap, true
}
