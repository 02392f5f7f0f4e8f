// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел, работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// PluralizeCoins возвращает правильную форму слова «монета» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "монета" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "монеты" (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → "монет" (0, 5-20, 25-30, 100, ...)
//
// Примеры:
//
//	PluralizeCoins(1)  → "монета"
//	PluralizeCoins(3)  → "монеты"
//	PluralizeCoins(5)  → "монет"
//	PluralizeCoins(11) → "монет"
//	PluralizeCoins(21) → "монета"
func PluralizeCoins(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	// Единственное число: 1, 21, 31, 101 (но НЕ 11, 111)
	if lastDigit == 1 && lastTwoDigits != 11 {
		return "монета"
	}

	// Малое множественное: 2-4, 22-24, 32-34 (но НЕ 12-14)
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "монеты"
	}

	return "монет"
}

// FormatCoins форматирует баланс в читабельную строку.
// Пример: FormatCoins(150) → "150 монет"
func FormatCoins(amount int64) string {
	return fmt.Sprintf("%d %s", amount, PluralizeCoins(amount))
}

// PluralizeItems возвращает правильную форму слова «предмет».
func PluralizeItems(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "предмет"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "предмета"
	}
	return "предметов"
}

// PluralizeStars возвращает правильную форму слова «звезда» (Telegram Stars).
func PluralizeStars(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "звезда"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "звезды"
	}
	return "звёзд"
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	rest := n / 1000
	last := n % 1000

	if rest > 0 {
		return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
	}
	return fmt.Sprintf("%d", last)
}

// MoscowTime возвращает текущее время в часовом поясе Москвы (Europe/Moscow).
func MoscowTime() time.Time {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3 вручную
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return time.Now().In(loc)
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (день.месяц.год часы:минуты).
// Используется для отображения дат заказов и предметов инвентаря.
func FormatDateTime(t time.Time) string {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
