package bot

import "referral-bot/internal/transport"

func mainMenu(isAdmin bool) *transport.Keyboard {
	rows := [][]string{
		{btnBalance, btnBonus},
		{btnReferral, btnWithdraw},
	}
	if isAdmin {
		rows = append(rows,
			[]string{btnBroadcast, btnStats},
			[]string{btnAddChannel, btnRemoveChannel},
			[]string{btnReferralBonus, btnDailyBonus, btnMinWithdrawal},
		)
	}
	return &transport.Keyboard{Reply: rows}
}
