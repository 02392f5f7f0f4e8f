// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки баланса и покупок
var (
	// ErrInsufficientBalance — недостаточно монет на счёте
	ErrInsufficientBalance = errors.New("недостаточно монет на счёте")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrItemNotFound — товар с таким названием не найден
	ErrItemNotFound = errors.New("товар не найден")
	// ErrNotEnoughItems — запрошено больше предметов, чем есть невыданных
	ErrNotEnoughItems = errors.New("недостаточно предметов в инвентаре")
)

// Ошибки заказов и платежей
var (
	// ErrOrderNotFound — заказ с таким идентификатором не существует
	ErrOrderNotFound = errors.New("заказ не найден")
	// ErrOrderAlreadyPaid — заказ уже оплачен, повторная оплата запрещена
	ErrOrderAlreadyPaid = errors.New("заказ уже оплачен")
	// ErrOrderCancelled — заказ отменён и не может быть оплачен
	ErrOrderCancelled = errors.New("заказ отменён")
	// ErrAmountMismatch — сумма платежа не совпадает с суммой заказа
	ErrAmountMismatch = errors.New("сумма платежа не совпадает с заказом")
	// ErrDepositTooSmall — сумма пополнения меньше минимальной
	ErrDepositTooSmall = errors.New("сумма меньше минимальной")
	// ErrDepositTooLarge — сумма пополнения больше максимальной
	ErrDepositTooLarge = errors.New("сумма больше максимальной")
)

// Ошибки админки
var (
	// ErrNotOperator — пользователь не является оператором бота
	ErrNotOperator = errors.New("у вас нет прав оператора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 15 минут")
	// ErrBroadcastRunning — рассылка уже запущена
	ErrBroadcastRunning = errors.New("рассылка уже выполняется")
)

// Ошибки внешнего SMM-API
var (
	// ErrSMMDisabled — реселлер-API не настроен (нет URL/ключа)
	ErrSMMDisabled = errors.New("SMM-сервисы временно недоступны")
	// ErrSMMUnavailable — внешний API вернул ошибку или не ответил
	ErrSMMUnavailable = errors.New("внешний сервис не отвечает")
)
